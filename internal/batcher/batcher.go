package batcher

import (
	"sync"
	"time"

	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/models"

	"go.uber.org/zap"
)

// FlushFunc 批次刷新回调，入参为已脱离批处理器的完整批次
type FlushFunc func(batch []*models.Reading)

// Batcher 时间窗口批处理器
// 空批次收到第一条读数时启动固定时长的定时器，到期刷新并轮转；
// 定时器不因后续读数重置，话痨传感器不能饿死下游投递。
// 追加与换出刷新通过同一把锁串行化，刷新在解锁前原子地摘下整个批次
type Batcher struct {
	mu       sync.Mutex
	timeout  time.Duration
	readings []*models.Reading
	timer    *time.Timer
	flushFn  FlushFunc
	stopped  bool
	logger   *zap.Logger
}

// NewBatcher 创建批处理器
func NewBatcher(cfg *config.Config, flushFn FlushFunc, logger *zap.Logger) *Batcher {
	return &Batcher{
		timeout: time.Duration(cfg.Batch.TimeoutSeconds) * time.Second,
		flushFn: flushFn,
		logger:  logger,
	}
}

// Ingest 追加读数到当前批次
// 首条读数启动刷新定时器；可与定时器触发的刷新并发调用
func (b *Batcher) Ingest(reading *models.Reading) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}

	b.readings = append(b.readings, reading)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.timeout, b.flush)
		b.logger.Debug("Batch timer started",
			zap.Duration("timeout", b.timeout),
		)
	}
	b.mu.Unlock()
}

// Size 返回当前批次大小
func (b *Batcher) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}

// Stop 停止批处理器并刷新剩余读数
func (b *Batcher) Stop() {
	b.mu.Lock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.detachLocked()
	b.mu.Unlock()

	b.deliver(batch)
}

// flush 定时器到期回调：摘下批次并投递
func (b *Batcher) flush() {
	b.mu.Lock()
	b.timer = nil
	batch := b.detachLocked()
	b.mu.Unlock()

	b.deliver(batch)
}

// detachLocked 原子地摘下批次（调用方必须持锁）
func (b *Batcher) detachLocked() []*models.Reading {
	batch := b.readings
	b.readings = nil
	return batch
}

// deliver 在锁外投递批次
func (b *Batcher) deliver(batch []*models.Reading) {
	if len(batch) == 0 {
		return
	}

	b.logger.Debug("Flushing batch",
		zap.Int("size", len(batch)),
	)
	b.flushFn(batch)
}
