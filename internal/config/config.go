package config

import (
	"os"
	"strconv"
	"strings"

	pkgconfig "housewatch-correlator/pkg/config"
)

// Config 态势关联服务配置
type Config struct {
	Database pkgconfig.DatabaseConfig
	Redis    pkgconfig.RedisConfig
	MQTT     pkgconfig.MQTTConfig

	// 摄取配置（MQTT 主题）
	Ingest struct {
		SensorTopic        string // 传感器事件订阅主题（通配符）
		CameraRequestTopic string // 仪表盘摄像头抓拍请求主题
		NotificationTopic  string // AI 叙述结果发布主题
		CameraEventPrefix  string // 抓拍事件回发主题前缀
	}

	// 噪声过滤配置
	Filter struct {
		DedupWindowSeconds int     // 去重窗口（秒）
		BatteryFloorPct    float64 // 电量下限（百分比），低于则丢弃
		SignalFloorDBm     float64 // 信号强度下限（dBm），低于则丢弃

		// 高峰时段低信息量传感器的概率降采样
		Downsample struct {
			SensorTypes       []string // 参与降采样的 sensor_type 列表
			StartHour         int      // 高峰开始小时（含）
			EndHour           int      // 高峰结束小时（不含）
			AcceptProbability float64  // 接受概率 ∈ [0,1]
			Seed              int64    // 随机源种子，0 表示按时间播种
		}
	}

	// 异常检测配置
	Anomaly struct {
		HistorySize int      // 每个传感器保留的历史值数量上限
		ZThreshold  float64  // Z-score 阈值
		ValueKeys   []string // 数值提取的有序键列表
	}

	// 批处理配置
	Batch struct {
		TimeoutSeconds int // 批次刷新超时（秒），首条消息到达时启动
	}

	// 态势构建配置
	Situation struct {
		MinSensors      int    // 佐证所需的最少不同传感器数
		CacheKeyPrefix  string // 态势缓存键前缀，如 "housewatch:site:"
		CacheSuffix     string // 态势缓存键后缀，如 ":latest"
		CacheTTLSeconds int    // 态势缓存 TTL（秒）
		Stream          string // 态势发布 Stream
		AuditStream     string // 校验失败审计 Stream
		RecentKeyPrefix string // 分区最近读数缓存键前缀，如 "housewatch:zone:"
		RecentLimit     int    // 每个分区保留的最近读数数量
	}

	// 工具执行配置
	Tools struct {
		TimeoutSeconds int // 单次工具执行的硬性时间预算（秒）
	}

	// 叙述服务配置
	Narrator struct {
		URL            string // 叙述服务地址，空则禁用
		TimeoutSeconds int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "housewatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "housewatch-correlator")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))

	cfg.Ingest.SensorTopic = getEnv("SENSOR_TOPIC", "office/+/+/+/+/+")
	cfg.Ingest.CameraRequestTopic = getEnv("CAMERA_REQUEST_TOPIC", "housewatch/camera/request")
	cfg.Ingest.NotificationTopic = getEnv("NOTIFICATION_TOPIC", "housewatch/notifications")
	cfg.Ingest.CameraEventPrefix = getEnv("CAMERA_EVENT_PREFIX", "office")

	cfg.Filter.DedupWindowSeconds = getEnvInt("DEDUP_WINDOW_SECONDS", 60)
	cfg.Filter.BatteryFloorPct = getEnvFloat("QUALITY_BATTERY_FLOOR", 5)
	cfg.Filter.SignalFloorDBm = getEnvFloat("QUALITY_SIGNAL_FLOOR", -90)
	cfg.Filter.Downsample.SensorTypes = getEnvList("DOWNSAMPLE_SENSOR_TYPES", []string{"motion"})
	cfg.Filter.Downsample.StartHour = getEnvInt("DOWNSAMPLE_START_HOUR", 9)
	cfg.Filter.Downsample.EndHour = getEnvInt("DOWNSAMPLE_END_HOUR", 17)
	cfg.Filter.Downsample.AcceptProbability = getEnvFloat("DOWNSAMPLE_ACCEPT_PROBABILITY", 0.25)
	cfg.Filter.Downsample.Seed = int64(getEnvInt("DOWNSAMPLE_SEED", 0))

	cfg.Anomaly.HistorySize = getEnvInt("ANOMALY_HISTORY_SIZE", 100)
	cfg.Anomaly.ZThreshold = getEnvFloat("ANOMALY_Z_THRESHOLD", 2.5)
	cfg.Anomaly.ValueKeys = getEnvList("ANOMALY_VALUE_KEYS",
		[]string{"celsius", "fahrenheit", "reading", "value", "count"})

	cfg.Batch.TimeoutSeconds = getEnvInt("BATCH_TIMEOUT_SECONDS", 15)

	cfg.Situation.MinSensors = getEnvInt("CORROBORATION_MIN_SENSORS", 2)
	cfg.Situation.CacheKeyPrefix = getEnv("SITUATION_CACHE_PREFIX", "housewatch:site:")
	cfg.Situation.CacheSuffix = ":latest"
	cfg.Situation.CacheTTLSeconds = getEnvInt("SITUATION_CACHE_TTL", 300)
	cfg.Situation.Stream = getEnv("SITUATION_STREAM", "housewatch:situations")
	cfg.Situation.AuditStream = getEnv("AUDIT_STREAM", "housewatch:audit")
	cfg.Situation.RecentKeyPrefix = getEnv("RECENT_READINGS_PREFIX", "housewatch:zone:")
	cfg.Situation.RecentLimit = getEnvInt("RECENT_READINGS_LIMIT", 50)

	cfg.Tools.TimeoutSeconds = getEnvInt("TOOL_TIMEOUT_SECONDS", 5)

	cfg.Narrator.URL = getEnv("NARRATOR_URL", "")
	cfg.Narrator.TimeoutSeconds = getEnvInt("NARRATOR_TIMEOUT_SECONDS", 30)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
