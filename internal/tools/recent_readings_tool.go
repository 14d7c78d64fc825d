package tools

import (
	"context"
	"fmt"

	"housewatch-correlator/internal/models"
)

// ReadingSource 近期读数查询接口（由 consumer.CacheManager 实现）
type ReadingSource interface {
	GetRecentReadings(ctx context.Context, zoneID string, limit int) ([]*models.Reading, error)
}

// RecentReadingsTool 近期传感器读数查询能力
type RecentReadingsTool struct {
	source       ReadingSource
	defaultLimit int
}

// NewRecentReadingsTool 创建近期读数查询能力
func NewRecentReadingsTool(source ReadingSource, defaultLimit int) *RecentReadingsTool {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &RecentReadingsTool{
		source:       source,
		defaultLimit: defaultLimit,
	}
}

// Execute 执行近期读数查询
func (t *RecentReadingsTool) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	zoneID, _ := params["zone_id"].(string)
	if zoneID == "" {
		return nil, fmt.Errorf("zone_id required")
	}

	limit := t.defaultLimit
	switch v := params["limit"].(type) {
	case float64:
		if v > 0 {
			limit = int(v)
		}
	case int:
		if v > 0 {
			limit = v
		}
	}

	readings, err := t.source.GetRecentReadings(ctx, zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent readings: %w", err)
	}

	list := make([]map[string]interface{}, 0, len(readings))
	for _, r := range readings {
		entry := map[string]interface{}{
			"sensor_id":   r.SensorID,
			"sensor_type": r.SensorType,
			"zone_id":     r.ZoneID,
			"ts":          r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			"value":       r.Value,
		}
		if r.AnomalyScore != nil {
			entry["anomaly_score"] = *r.AnomalyScore
		}
		list = append(list, entry)
	}

	return map[string]interface{}{
		"zone_id":  zoneID,
		"count":    len(list),
		"readings": list,
	}, nil
}

// Description 能力描述
func (t *RecentReadingsTool) Description() string {
	return `Fetch the most recent sensor readings for a zone.

Usage:
- recent_readings(zone_id="lobby") - latest readings for a zone
- recent_readings(zone_id="lobby", limit=5) - cap the number of readings`
}
