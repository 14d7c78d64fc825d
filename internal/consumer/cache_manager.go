package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/models"
	redisutil "housewatch-correlator/pkg/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheManager Redis 缓存管理器（态势缓存 + 发布流 + 分区最近读数）
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishSituation 发布态势：写入站点最新态势缓存并追加到态势 Stream
func (c *CacheManager) PublishSituation(ctx context.Context, siteID string, situation *models.Situation) error {
	jsonData, err := json.Marshal(situation)
	if err != nil {
		return fmt.Errorf("failed to marshal situation: %w", err)
	}

	// 1. 写入站点最新态势缓存（设置 TTL）
	key := fmt.Sprintf("%s%s%s",
		c.config.Situation.CacheKeyPrefix,
		siteID,
		c.config.Situation.CacheSuffix,
	)
	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Situation.CacheTTLSeconds)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set situation cache: %w", err)
	}

	// 2. 追加到态势 Stream，供下游消费
	_, err = redisutil.PublishToStream(ctx, c.redisClient, c.config.Situation.Stream, map[string]interface{}{
		"situation_id": situation.ID,
		"site_id":      siteID,
		"confidence":   situation.Confidence,
		"data":         string(jsonData),
	})
	if err != nil {
		return fmt.Errorf("failed to publish situation to stream: %w", err)
	}

	c.logger.Debug("Published situation",
		zap.String("situation_id", situation.ID),
		zap.String("site_id", siteID),
		zap.String("key", key),
		zap.Int("message_count", len(situation.Messages)),
	)

	return nil
}

// GetLatestSituation 读取站点最新态势缓存
func (c *CacheManager) GetLatestSituation(ctx context.Context, siteID string) (*models.Situation, error) {
	key := fmt.Sprintf("%s%s%s",
		c.config.Situation.CacheKeyPrefix,
		siteID,
		c.config.Situation.CacheSuffix,
	)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("situation not found for site: %s", siteID)
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var situation models.Situation
	if err := json.Unmarshal([]byte(val), &situation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal situation: %w", err)
	}

	return &situation, nil
}

// PublishValidationFailure 发布校验失败到审计 Stream
func (c *CacheManager) PublishValidationFailure(ctx context.Context, failure *models.ValidationFailure) error {
	_, err := redisutil.PublishJSONToStream(ctx, c.redisClient, c.config.Situation.AuditStream, failure)
	if err != nil {
		return fmt.Errorf("failed to publish validation failure: %w", err)
	}

	c.logger.Debug("Published validation failure",
		zap.String("failure_id", failure.FailureID),
		zap.String("reason", failure.Reason),
	)

	return nil
}

// RecordReading 记录分区最近读数（LPUSH + LTRIM 保持定长）
func (c *CacheManager) RecordReading(ctx context.Context, reading *models.Reading) error {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	key := c.config.Situation.RecentKeyPrefix + reading.ZoneID

	pipe := c.redisClient.Pipeline()
	pipe.LPush(ctx, key, jsonData)
	pipe.LTrim(ctx, key, 0, int64(c.config.Situation.RecentLimit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record reading: %w", err)
	}

	return nil
}

// GetRecentReadings 获取分区最近读数（新到旧）
func (c *CacheManager) GetRecentReadings(ctx context.Context, zoneID string, limit int) ([]*models.Reading, error) {
	if limit <= 0 || limit > c.config.Situation.RecentLimit {
		limit = c.config.Situation.RecentLimit
	}

	key := c.config.Situation.RecentKeyPrefix + zoneID
	vals, err := c.redisClient.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent readings: %w", err)
	}

	readings := make([]*models.Reading, 0, len(vals))
	for _, val := range vals {
		var reading models.Reading
		if err := json.Unmarshal([]byte(val), &reading); err != nil {
			// 坏条目跳过，不让单条脏数据阻断查询
			c.logger.Warn("Skipping malformed cached reading",
				zap.String("zone_id", zoneID),
				zap.Error(err),
			)
			continue
		}
		readings = append(readings, &reading)
	}

	return readings, nil
}
