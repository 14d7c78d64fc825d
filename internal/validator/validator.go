package validator

import (
	"fmt"
	"strings"
	"time"

	"housewatch-correlator/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Validator 原始载荷校验器
// 接受 canonical 格式直接转换；两种 legacy 格式（旧家居格式、Home Assistant 格式）
// 按调用方提供的 room→zone 映射重建 canonical 读数。纯函数，不持有可变状态。
type Validator struct {
	defaultSiteID string
	defaultFloor  int
	logger        *zap.Logger
}

// NewValidator 创建校验器
func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		defaultSiteID: "hq",
		defaultFloor:  1,
		logger:        logger,
	}
}

// Validate 校验原始载荷，返回 Reading 或结构化的校验失败
// 校验失败不是异常：携带原因和原始载荷，由调用方路由到审计流后继续摄取
func (v *Validator) Validate(raw map[string]interface{}, zoneMap map[string]string) (*models.Reading, *models.ValidationFailure) {
	if raw == nil {
		return nil, v.failure(raw, "payload is not a JSON object")
	}

	// canonical 格式：必须带 sensor_id 和 value
	if _, ok := raw["sensor_id"]; ok {
		return v.validateCanonical(raw)
	}

	// Home Assistant 格式
	if _, ok := raw["entity_id"]; ok {
		return v.fromHomeAssistant(raw, zoneMap), nil
	}

	// 旧家居格式 {sensor, value, room}
	if _, ok := raw["sensor"]; ok {
		return v.fromLegacy(raw, zoneMap), nil
	}

	return nil, v.failure(raw, "unrecognized payload shape")
}

// validateCanonical 校验 canonical 格式载荷
func (v *Validator) validateCanonical(raw map[string]interface{}) (*models.Reading, *models.ValidationFailure) {
	sensorID := asString(raw["sensor_id"])
	if sensorID == "" {
		return nil, v.failure(raw, "sensor_id is empty")
	}

	sensorType := asString(raw["sensor_type"])
	if sensorType == "" {
		return nil, v.failure(raw, "sensor_type is empty")
	}

	zoneID := asString(raw["zone_id"])
	if zoneID == "" {
		return nil, v.failure(raw, "zone_id is empty")
	}

	tsStr := asString(raw["ts"])
	if tsStr == "" {
		return nil, v.failure(raw, "ts is missing")
	}
	ts, err := parseTimestamp(tsStr)
	if err != nil {
		return nil, v.failure(raw, fmt.Sprintf("invalid ts: %v", err))
	}

	value, ok := raw["value"].(map[string]interface{})
	if !ok {
		return nil, v.failure(raw, "value is not an object")
	}

	reading := &models.Reading{
		Timestamp:  ts,
		SensorID:   sensorID,
		SensorType: sensorType,
		ZoneID:     zoneID,
		SiteID:     v.defaultSiteID,
		Floor:      v.defaultFloor,
		Value:      value,
	}

	if siteID := asString(raw["site_id"]); siteID != "" {
		reading.SiteID = siteID
	}
	if floor, ok := asInt(raw["floor"]); ok {
		reading.Floor = floor
	}
	if quality, ok := raw["quality"].(map[string]interface{}); ok {
		reading.Quality = quality
	}

	return reading, nil
}

// fromHomeAssistant 从 Home Assistant 状态变更事件重建读数
// sensor_type 从 entity_id 的后缀推导（如 "binary_sensor.speaking_detected" -> "speaking"）
func (v *Validator) fromHomeAssistant(raw map[string]interface{}, zoneMap map[string]string) *models.Reading {
	entityID := asString(raw["entity_id"])
	if entityID == "" {
		entityID = "unknown"
	}

	sensorType := "unknown"
	if idx := strings.LastIndex(entityID, "."); idx >= 0 && idx < len(entityID)-1 {
		sensorType = strings.ReplaceAll(
			strings.TrimSuffix(entityID[idx+1:], "_detected"), "_", " ")
	}

	ts := time.Now()
	if tsStr := asString(raw["timestamp"]); tsStr != "" {
		if parsed, err := parseTimestamp(tsStr); err == nil {
			ts = parsed
		}
	}

	area := asString(raw["area"])
	zoneID := area
	if mapped, ok := zoneMap[area]; ok {
		zoneID = mapped
	}
	if zoneID == "" {
		zoneID = "unknown"
	}

	value := map[string]interface{}{
		"state":          raw["to_state"],
		"previous_state": raw["from_state"],
	}
	if attrs, ok := raw["attributes"].(map[string]interface{}); ok {
		value["attributes"] = attrs
	} else {
		value["attributes"] = map[string]interface{}{}
	}

	return &models.Reading{
		Timestamp:  ts,
		SensorID:   entityID,
		SensorType: sensorType,
		ZoneID:     zoneID,
		SiteID:     v.defaultSiteID,
		Floor:      v.defaultFloor,
		Value:      value,
	}
}

// fromLegacy 从旧家居格式 {sensor, value, room} 重建读数
// 未知 room 显式落到 "unknown" 分区而不是丢弃
func (v *Validator) fromLegacy(raw map[string]interface{}, zoneMap map[string]string) *models.Reading {
	sensor := asString(raw["sensor"])
	if sensor == "" {
		sensor = "unknown"
	}

	zoneID := "unknown"
	if mapped, ok := zoneMap[asString(raw["room"])]; ok && mapped != "" {
		zoneID = mapped
	}

	return &models.Reading{
		Timestamp:  time.Now(),
		SensorID:   sensor,
		SensorType: sensor,
		ZoneID:     zoneID,
		SiteID:     v.defaultSiteID,
		Floor:      v.defaultFloor,
		Value:      map[string]interface{}{"reading": raw["value"]},
	}
}

// failure 构建校验失败记录
func (v *Validator) failure(raw map[string]interface{}, reason string) *models.ValidationFailure {
	v.logger.Debug("Payload validation failed",
		zap.String("reason", reason),
	)

	return &models.ValidationFailure{
		FailureID:  uuid.New().String(),
		Reason:     reason,
		RawPayload: raw,
		ReceivedAt: time.Now(),
	}
}

// parseTimestamp 解析 ISO-8601 时间戳（兼容无时区偏移的格式）
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
