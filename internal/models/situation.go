package models

// SituationFeatures 态势特征（按批次计算）
type SituationFeatures struct {
	Zones         []string       `json:"zones"`
	EventCounts   map[string]int `json:"event_counts"`
	AnomalyScores []float64      `json:"anomaly_scores"`
}

// Situation 经过多传感器佐证的态势
// 每个符合条件的批次最多产生一个，创建后不可变
type Situation struct {
	ID         string            `json:"id"`
	Messages   []*Reading        `json:"messages"`
	Features   SituationFeatures `json:"features"`
	Confidence float64           `json:"confidence"`
}

// ToPromptJSON 转换为下游 AI 编排器使用的序列化结构
func (s *Situation) ToPromptJSON() map[string]interface{} {
	return map[string]interface{}{
		"id":            s.ID,
		"message_count": len(s.Messages),
		"zones":         s.Features.Zones,
		"event_counts":  s.Features.EventCounts,
		"confidence":    s.Confidence,
		"messages":      s.Messages,
	}
}
