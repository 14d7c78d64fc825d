package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/models"

	"go.uber.org/zap"
)

// Tool 工具能力接口
// 所有能力多态实现同一个 Execute；新增能力只需注册，不触碰路由逻辑
type Tool interface {
	Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

// Describer 可选接口：为 AI 提示词提供能力描述
type Describer interface {
	Description() string
}

// Router 工具路由器
// 在硬性时间预算内执行具名能力；超时、未知工具和内部失败
// 一律转换为结构化结果返回，绝不越过路由器边界抛出
type Router struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	budget time.Duration
	logger *zap.Logger
}

// NewRouter 创建工具路由器
func NewRouter(cfg *config.Config, logger *zap.Logger) *Router {
	return &Router{
		tools:  make(map[string]Tool),
		budget: time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
		logger: logger,
	}
}

// Register 按名称注册能力
func (r *Router) Register(name string, tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = tool
}

// Execute 执行具名能力
// 执行在后台 goroutine 中进行并限时等待；超出预算的调用允许在后台
// 跑完，但一旦超时信号发出，其结果即被丢弃
func (r *Router) Execute(ctx context.Context, name string, params map[string]interface{}) models.ToolResult {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("Unknown tool requested",
			zap.String("tool_name", name),
		)
		return models.ToolResult{Error: models.ToolErrorUnknownTool}
	}

	cctx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	type outcome struct {
		payload map[string]interface{}
		err     error
	}

	// 缓冲为 1：超时后迟到的结果不会阻塞后台 goroutine
	resultCh := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- outcome{err: fmt.Errorf("tool panicked: %v", rec)}
			}
		}()
		payload, err := tool.Execute(cctx, params)
		resultCh <- outcome{payload: payload, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			r.logger.Warn("Tool execution failed",
				zap.String("tool_name", name),
				zap.Error(result.err),
			)
			return models.ToolResult{Error: result.err.Error()}
		}
		return models.ToolResult{Payload: result.payload}
	case <-cctx.Done():
		r.logger.Warn("Tool execution timed out",
			zap.String("tool_name", name),
			zap.Duration("budget", r.budget),
		)
		return models.ToolResult{Error: models.ToolErrorTimeout}
	}
}

// Catalog 返回能力目录（按名称排序），供 AI 编排器的提示词使用
func (r *Router) Catalog() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if d, ok := r.tools[name].(Describer); ok {
			parts = append(parts, fmt.Sprintf("%s: %s", name, d.Description()))
		} else {
			parts = append(parts, name)
		}
	}

	return strings.Join(parts, "\n\n")
}
