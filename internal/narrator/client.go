package narrator

import (
	"context"
	"fmt"
	"time"

	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// NarrationRequest 叙述服务请求
type NarrationRequest struct {
	Situation         map[string]interface{} `json:"situation"`
	PreviousSituation map[string]interface{} `json:"previous_situation,omitempty"`
	ToolCatalog       string                 `json:"tool_catalog,omitempty"`
}

// NarrationResponse 叙述服务响应
type NarrationResponse struct {
	Text   string                 `json:"text"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Client AI 叙述服务客户端
// 叙述服务是黑盒：只在态势发布之后调用，失败不影响态势链路
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建叙述服务客户端
// URL 为空表示禁用叙述，返回 nil
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	if cfg.Narrator.URL == "" {
		return nil
	}

	client := resty.New().
		SetBaseURL(cfg.Narrator.URL).
		SetTimeout(time.Duration(cfg.Narrator.TimeoutSeconds) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// Narrate 请求对态势生成叙述
func (c *Client) Narrate(ctx context.Context, situation *models.Situation, previous *models.Situation, toolCatalog string) (*NarrationResponse, error) {
	request := NarrationRequest{
		Situation:   situation.ToPromptJSON(),
		ToolCatalog: toolCatalog,
	}
	if previous != nil {
		request.PreviousSituation = previous.ToPromptJSON()
	}

	c.logger.Info("Calling narration service",
		zap.String("situation_id", situation.ID),
		zap.Int("message_count", len(situation.Messages)),
	)

	var response NarrationResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/narrate")

	if err != nil {
		return nil, fmt.Errorf("failed to call narration service: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("narration service error: status=%d body=%s",
			resp.StatusCode(), resp.String())
	}

	if response.Text == "" {
		return nil, fmt.Errorf("narration service returned empty text")
	}

	return &response, nil
}
