package models

import (
	"time"
)

// Reading 校验后的传感器读数（canonical 格式）
// 一旦通过校验即视为不可变，仅由异常检测器补充一次 anomaly_score
type Reading struct {
	Timestamp    time.Time              `json:"ts"`
	SensorID     string                 `json:"sensor_id"`
	SensorType   string                 `json:"sensor_type"`
	ZoneID       string                 `json:"zone_id"`
	SiteID       string                 `json:"site_id"`
	Floor        int                    `json:"floor"`
	Value        map[string]interface{} `json:"value"`
	Quality      map[string]interface{} `json:"quality,omitempty"`
	AnomalyScore *float64               `json:"anomaly_score,omitempty"`
}

// ValidationFailure 校验失败（可恢复错误，发送到审计流后继续摄取）
type ValidationFailure struct {
	FailureID  string                 `json:"failure_id"`
	Reason     string                 `json:"reason"`
	RawPayload map[string]interface{} `json:"raw_payload"`
	ReceivedAt time.Time              `json:"received_at"`
}
