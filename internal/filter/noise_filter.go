package filter

import (
	"math/rand"
	"reflect"
	"sync"
	"time"

	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/models"

	"go.uber.org/zap"
)

// dedupEntry 每个传感器最近一次被接受的读数基线
type dedupEntry struct {
	value map[string]interface{}
	ts    time.Time
}

// NoiseFilter 噪声过滤器
// 按固定顺序执行：去重 → 质量门限 → 高峰时段概率降采样
// 去重基线只在接受路径上更新，连续的重复读数全部与最初被接受的那条比较
type NoiseFilter struct {
	mu           sync.Mutex
	dedupWindow  time.Duration
	batteryFloor float64
	signalFloor  float64

	downsampleTypes map[string]bool
	startHour       int
	endHour         int
	acceptProb      float64
	rng             *rand.Rand

	lastAccepted map[string]dedupEntry
	now          func() time.Time
	logger       *zap.Logger
}

// NewNoiseFilter 创建噪声过滤器
// 随机源按配置的种子播种（0 表示按时间播种），保证降采样在测试下可复现
func NewNoiseFilter(cfg *config.Config, logger *zap.Logger) *NoiseFilter {
	seed := cfg.Filter.Downsample.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	downsampleTypes := make(map[string]bool, len(cfg.Filter.Downsample.SensorTypes))
	for _, t := range cfg.Filter.Downsample.SensorTypes {
		downsampleTypes[t] = true
	}

	return &NoiseFilter{
		dedupWindow:     time.Duration(cfg.Filter.DedupWindowSeconds) * time.Second,
		batteryFloor:    cfg.Filter.BatteryFloorPct,
		signalFloor:     cfg.Filter.SignalFloorDBm,
		downsampleTypes: downsampleTypes,
		startHour:       cfg.Filter.Downsample.StartHour,
		endHour:         cfg.Filter.Downsample.EndHour,
		acceptProb:      cfg.Filter.Downsample.AcceptProbability,
		rng:             rand.New(rand.NewSource(seed)),
		lastAccepted:    make(map[string]dedupEntry),
		now:             time.Now,
		logger:          logger,
	}
}

// Accept 判断读数是否通过过滤
// 返回 false 表示被抑制（这是一个显式决策，不是错误）
func (f *NoiseFilter) Accept(reading *models.Reading) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	// 1. 去重：同一传感器、相同 value、落在窗口内
	if entry, ok := f.lastAccepted[reading.SensorID]; ok {
		if reflect.DeepEqual(entry.value, reading.Value) &&
			reading.Timestamp.Sub(entry.ts) < f.dedupWindow {
			f.logger.Debug("Suppressed duplicate reading",
				zap.String("sensor_id", reading.SensorID),
			)
			return false
		}
	}

	// 2. 质量门限
	if !f.passesQualityGate(reading) {
		return false
	}

	// 3. 高峰时段低信息量传感器的概率降采样
	if f.downsampleTypes[reading.SensorType] && f.inBusyHours() {
		if f.rng.Float64() >= f.acceptProb {
			f.logger.Debug("Downsampled reading during busy hours",
				zap.String("sensor_id", reading.SensorID),
				zap.String("sensor_type", reading.SensorType),
			)
			return false
		}
	}

	// 仅在接受路径上更新基线
	f.lastAccepted[reading.SensorID] = dedupEntry{
		value: reading.Value,
		ts:    reading.Timestamp,
	}

	return true
}

// passesQualityGate 质量门限检查（电量、信号强度）
func (f *NoiseFilter) passesQualityGate(reading *models.Reading) bool {
	if reading.Quality == nil {
		return true
	}

	if battery, ok := asFloat(reading.Quality["battery_pct"]); ok && battery < f.batteryFloor {
		f.logger.Debug("Suppressed low battery reading",
			zap.String("sensor_id", reading.SensorID),
			zap.Float64("battery_pct", battery),
		)
		return false
	}

	if signal, ok := asFloat(reading.Quality["signal_dbm"]); ok && signal < f.signalFloor {
		f.logger.Debug("Suppressed weak signal reading",
			zap.String("sensor_id", reading.SensorID),
			zap.Float64("signal_dbm", signal),
		)
		return false
	}

	return true
}

// inBusyHours 判断当前是否处于配置的高峰时段 [startHour, endHour)
func (f *NoiseFilter) inBusyHours() bool {
	hour := f.now().Hour()
	return hour >= f.startHour && hour < f.endHour
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
