package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"housewatch-correlator/internal/anomaly"
	"housewatch-correlator/internal/batcher"
	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/filter"
	"housewatch-correlator/internal/validator"

	"go.uber.org/zap"
)

// RoomZoneSource 房间到分区映射的来源（由 repository.FloorPlanRepository 实现）
type RoomZoneSource interface {
	GetRoomZoneMap(ctx context.Context) (map[string]string, error)
}

// MQTTConsumer 传感器事件消费者
// 摄取链路：校验 → 噪声过滤 → 异常打分 → 记录最近读数 → 进入批次
// 单条消息的失败只记录审计/日志，绝不中断消费
type MQTTConsumer struct {
	config     *config.Config
	mqttClient MQTTConn
	validator  *validator.Validator
	filter     *filter.NoiseFilter
	detector   *anomaly.Detector
	batcher    *batcher.Batcher
	cache      *CacheManager
	zoneSource RoomZoneSource
	logger     *zap.Logger

	mu      sync.RWMutex
	zoneMap map[string]string
}

// NewMQTTConsumer 创建传感器事件消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient MQTTConn,
	v *validator.Validator,
	f *filter.NoiseFilter,
	d *anomaly.Detector,
	b *batcher.Batcher,
	cache *CacheManager,
	zoneSource RoomZoneSource,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		validator:  v,
		filter:     f,
		detector:   d,
		batcher:    b,
		cache:      cache,
		zoneSource: zoneSource,
		logger:     logger,
		zoneMap:    make(map[string]string),
	}
}

// Start 加载房间映射并订阅传感器主题
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.RefreshZoneMap(ctx); err != nil {
		// 映射缺失只影响 legacy/HA 格式的分区解析，canonical 格式不受影响
		c.logger.Warn("Failed to load room zone map, legacy payloads will fall back to unknown zone",
			zap.Error(err),
		)
	}

	topic := c.config.Ingest.SensorTopic
	if err := c.mqttClient.Subscribe(topic, c.config.MQTT.QoS, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to sensor topic: %w", err)
	}

	c.logger.Info("Sensor consumer started",
		zap.String("topic", topic),
	)

	return nil
}

// RefreshZoneMap 重新加载房间到分区的映射
func (c *MQTTConsumer) RefreshZoneMap(ctx context.Context) error {
	zoneMap, err := c.zoneSource.GetRoomZoneMap(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.zoneMap = zoneMap
	c.mu.Unlock()

	c.logger.Info("Room zone map loaded",
		zap.Int("room_count", len(zoneMap)),
	)

	return nil
}

// HandleMessage 处理单条传感器消息
func (c *MQTTConsumer) HandleMessage(topic string, payload []byte) error {
	ctx := context.Background()

	// 1. 解析 JSON
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		c.logger.Warn("Dropping non-JSON sensor payload",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return nil
	}

	// 2. 校验，失败送审计流后继续
	c.mu.RLock()
	zoneMap := c.zoneMap
	c.mu.RUnlock()

	reading, failure := c.validator.Validate(raw, zoneMap)
	if failure != nil {
		if err := c.cache.PublishValidationFailure(ctx, failure); err != nil {
			c.logger.Error("Failed to publish validation failure",
				zap.String("failure_id", failure.FailureID),
				zap.Error(err),
			)
		}
		return nil
	}

	// 3. 噪声过滤
	if !c.filter.Accept(reading) {
		return nil
	}

	// 4. 异常打分（总是给 reading 补充 anomaly_score）
	isAnomaly, score := c.detector.Score(reading)
	if isAnomaly {
		c.logger.Info("Anomalous reading",
			zap.String("sensor_id", reading.SensorID),
			zap.String("zone_id", reading.ZoneID),
			zap.Float64("score", score),
		)
	}

	// 5. 记录分区最近读数（失败不阻断摄取）
	if err := c.cache.RecordReading(ctx, reading); err != nil {
		c.logger.Error("Failed to record recent reading",
			zap.String("sensor_id", reading.SensorID),
			zap.Error(err),
		)
	}

	// 6. 进入批次
	c.batcher.Ingest(reading)

	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() {
	if err := c.mqttClient.Unsubscribe(c.config.Ingest.SensorTopic); err != nil {
		c.logger.Warn("Failed to unsubscribe sensor topic",
			zap.Error(err),
		)
	}
}
