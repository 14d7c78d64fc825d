package situation

import (
	"fmt"
	"time"

	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Builder 态势构建器
// 对批次做分区聚类、特征计算和多传感器佐证；佐证是首要的误报防线，
// 单个抖动的传感器永远不会产生态势
type Builder struct {
	minSensors int
	zThreshold float64
	logger     *zap.Logger
}

// NewBuilder 创建态势构建器
func NewBuilder(cfg *config.Config, logger *zap.Logger) *Builder {
	return &Builder{
		minSensors: cfg.Situation.MinSensors,
		zThreshold: cfg.Anomaly.ZThreshold,
		logger:     logger,
	}
}

// Build 从批次构建态势，不满足佐证条件时返回 nil（下游零成本）
func (b *Builder) Build(batch []*models.Reading) *models.Situation {
	if len(batch) == 0 {
		return nil
	}

	// 1. 佐证门限：至少 minSensors 个不同的 sensor_id
	distinctSensors := make(map[string]bool)
	for _, r := range batch {
		distinctSensors[r.SensorID] = true
	}
	if len(distinctSensors) < b.minSensors {
		b.logger.Debug("Batch below corroboration minimum",
			zap.Int("batch_size", len(batch)),
			zap.Int("distinct_sensors", len(distinctSensors)),
		)
		return nil
	}

	// 2. 特征计算：分区聚类、事件类型计数、异常分数列表
	features := b.computeFeatures(batch)

	// 3. 置信度：佐证成立给基线 0.8，异常严重度和分区跨度各自上调，截断到 [0,1]
	confidence := 0.8
	if maxScore(features.AnomalyScores) > b.zThreshold {
		confidence += 0.1
	}
	if len(features.Zones) >= 2 {
		confidence += 0.05
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	sit := &models.Situation{
		ID:         newSituationID(),
		Messages:   batch,
		Features:   features,
		Confidence: confidence,
	}

	b.logger.Info("Situation built",
		zap.String("situation_id", sit.ID),
		zap.Int("message_count", len(batch)),
		zap.Strings("zones", features.Zones),
		zap.Float64("confidence", confidence),
	)

	return sit
}

// computeFeatures 计算批次特征
func (b *Builder) computeFeatures(batch []*models.Reading) models.SituationFeatures {
	features := models.SituationFeatures{
		EventCounts:   make(map[string]int),
		AnomalyScores: make([]float64, 0, len(batch)),
	}

	seenZones := make(map[string]bool)
	for _, r := range batch {
		features.EventCounts[r.SensorType]++

		if !seenZones[r.ZoneID] {
			seenZones[r.ZoneID] = true
			features.Zones = append(features.Zones, r.ZoneID)
		}

		var score float64
		if r.AnomalyScore != nil {
			score = *r.AnomalyScore
		}
		features.AnomalyScores = append(features.AnomalyScores, score)
	}

	return features
}

// newSituationID 生成全局唯一、按时间可排序的态势标识
// 毫秒时间戳做前缀保证排序性，uuid 片段保证同毫秒内的唯一性
func newSituationID() string {
	return fmt.Sprintf("sit-%013d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

func maxScore(scores []float64) float64 {
	var max float64
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	return max
}
