package anomaly

import (
	"math"
	"strconv"
	"sync"

	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/models"

	"go.uber.org/zap"
)

// Detector 基于 Z-score 的统计异常检测器
// 按 sensor_id 维护有界的历史值（满容量时淘汰最旧值），
// 历史在每次评分后都会更新，基线在持续的阶跃变化后能自行恢复
type Detector struct {
	mu        sync.Mutex
	threshold float64
	capacity  int
	valueKeys []string
	history   map[string][]float64
	logger    *zap.Logger
}

// NewDetector 创建异常检测器
func NewDetector(cfg *config.Config, logger *zap.Logger) *Detector {
	return &Detector{
		threshold: cfg.Anomaly.ZThreshold,
		capacity:  cfg.Anomaly.HistorySize,
		valueKeys: cfg.Anomaly.ValueKeys,
		history:   make(map[string][]float64),
		logger:    logger,
	}
}

// Score 对读数评分并写入 anomaly_score
// 数值按配置的有序键列表提取，首个命中生效；无数值命中时显式返回 (false, 0)。
// 历史不足 3 条或标准差为 0 时返回 (false, 0)
func (d *Detector) Score(reading *models.Reading) (bool, float64) {
	value, ok := d.extractNumericValue(reading.Value)
	if !ok {
		return false, 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	history := d.history[reading.SensorID]

	var score float64
	if len(history) >= 3 {
		mean, stdev := meanStdev(history)
		if stdev > 0 {
			score = math.Abs(value-mean) / stdev
		}
	}

	// 无论是否异常都追加历史，保证基线自愈
	history = append(history, value)
	if len(history) > d.capacity {
		history = history[len(history)-d.capacity:]
	}
	d.history[reading.SensorID] = history

	reading.AnomalyScore = &score

	isAnomalous := score > d.threshold
	if isAnomalous {
		d.logger.Info("Anomalous reading detected",
			zap.String("sensor_id", reading.SensorID),
			zap.String("zone_id", reading.ZoneID),
			zap.Float64("z_score", score),
			zap.Float64("value", value),
		)
	}

	return isAnomalous, score
}

// HistoryLen 返回某个传感器当前保留的历史长度
func (d *Detector) HistoryLen(sensorID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.history[sensorID])
}

// extractNumericValue 按有序键列表提取数值
func (d *Detector) extractNumericValue(value map[string]interface{}) (float64, bool) {
	for _, key := range d.valueKeys {
		v, ok := value[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// meanStdev 计算均值和样本标准差
func meanStdev(values []float64) (float64, float64) {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	stdev := math.Sqrt(sumSq / (n - 1))

	return mean, stdev
}
