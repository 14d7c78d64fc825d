package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"housewatch-correlator/internal/anomaly"
	"housewatch-correlator/internal/batcher"
	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/consumer"
	"housewatch-correlator/internal/filter"
	"housewatch-correlator/internal/models"
	"housewatch-correlator/internal/narrator"
	"housewatch-correlator/internal/repository"
	"housewatch-correlator/internal/situation"
	"housewatch-correlator/internal/tools"
	"housewatch-correlator/internal/validator"
	"housewatch-correlator/pkg/database"
	"housewatch-correlator/pkg/mqtt"
	redisutil "housewatch-correlator/pkg/redis"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// CorrelatorService 态势关联服务（整合各层）
type CorrelatorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	// 各层组件
	floorPlanRepo *repository.FloorPlanRepository
	cacheManager  *consumer.CacheManager
	validator     *validator.Validator
	noiseFilter   *filter.NoiseFilter
	detector      *anomaly.Detector
	batcher       *batcher.Batcher
	builder       *situation.Builder
	toolRouter    *tools.Router
	narrator      *narrator.Client
	mqttConsumer  *consumer.MQTTConsumer
	cameraHandler *consumer.CameraRequestHandler

	// 上一条已发布的态势，供叙述服务做前后对照
	mu            sync.Mutex
	lastSituation *models.Situation

	wg sync.WaitGroup
}

// NewCorrelatorService 创建态势关联服务
func NewCorrelatorService(cfg *config.Config, logger *zap.Logger) (*CorrelatorService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redisutil.NewRedisClient(&cfg.Redis)
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT
	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	// 4. 创建 Repository 层
	floorPlanRepo := repository.NewFloorPlanRepository(db, logger)

	// 5. 创建缓存管理器与管道组件
	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)
	v := validator.NewValidator(logger)
	noiseFilter := filter.NewNoiseFilter(cfg, logger)
	detector := anomaly.NewDetector(cfg, logger)
	builder := situation.NewBuilder(cfg, logger)

	// 6. 创建工具路由器并注册能力
	toolRouter := tools.NewRouter(cfg, logger)
	toolRouter.Register("floor_plan", tools.NewFloorPlanTool(floorPlanRepo))
	toolRouter.Register("camera_snapshot", tools.NewCameraTool(floorPlanRepo, nil, logger))
	toolRouter.Register("recent_readings", tools.NewRecentReadingsTool(cacheManager, cfg.Situation.RecentLimit))

	// 7. 叙述服务客户端（URL 为空则禁用）
	narratorClient := narrator.NewClient(cfg, logger)

	s := &CorrelatorService{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		mqttClient:    mqttClient,
		logger:        logger,
		floorPlanRepo: floorPlanRepo,
		cacheManager:  cacheManager,
		validator:     v,
		noiseFilter:   noiseFilter,
		detector:      detector,
		builder:       builder,
		toolRouter:    toolRouter,
		narrator:      narratorClient,
	}

	// 8. 批处理器的刷新回调进入态势链路
	s.batcher = batcher.NewBatcher(cfg, s.handleBatch, logger)

	// 9. 创建消费者
	s.mqttConsumer = consumer.NewMQTTConsumer(
		cfg,
		mqttClient,
		v,
		noiseFilter,
		detector,
		s.batcher,
		cacheManager,
		floorPlanRepo,
		logger,
	)
	s.cameraHandler = consumer.NewCameraRequestHandler(
		cfg,
		mqttClient,
		toolRouter,
		floorPlanRepo,
		logger,
	)

	return s, nil
}

// SetSnapshotCapturer 注入抓拍实现并重新注册摄像头能力
// 默认不注入时 camera_snapshot 返回未配置错误
func (s *CorrelatorService) SetSnapshotCapturer(capturer tools.SnapshotCapturer) {
	s.toolRouter.Register("camera_snapshot", tools.NewCameraTool(s.floorPlanRepo, capturer, s.logger))
}

// Start 启动服务
func (s *CorrelatorService) Start(ctx context.Context) error {
	s.logger.Info("Starting correlator service",
		zap.String("sensor_topic", s.config.Ingest.SensorTopic),
		zap.Int("batch_timeout_seconds", s.config.Batch.TimeoutSeconds),
	)

	if err := s.mqttConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sensor consumer: %w", err)
	}

	if err := s.cameraHandler.Start(); err != nil {
		return fmt.Errorf("failed to start camera handler: %w", err)
	}

	return nil
}

// handleBatch 批次刷新回调：构建态势、发布、触发叙述
func (s *CorrelatorService) handleBatch(batch []*models.Reading) {
	ctx := context.Background()

	sit := s.builder.Build(batch)
	if sit == nil {
		// 佐证不足的批次静默丢弃
		return
	}

	siteID := sit.Messages[0].SiteID

	if err := s.cacheManager.PublishSituation(ctx, siteID, sit); err != nil {
		s.logger.Error("Failed to publish situation",
			zap.String("situation_id", sit.ID),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	previous := s.lastSituation
	s.lastSituation = sit
	s.mu.Unlock()

	s.logger.Info("Situation published",
		zap.String("situation_id", sit.ID),
		zap.String("site_id", siteID),
		zap.Float64("confidence", sit.Confidence),
		zap.Int("message_count", len(sit.Messages)),
		zap.Strings("zones", sit.Features.Zones),
	)

	// 叙述严格在态势发布之后进行，失败不回滚态势
	if s.narrator != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.narrate(sit, previous)
		}()
	}
}

// narrate 调用叙述服务并将结果发布到通知主题
func (s *CorrelatorService) narrate(sit *models.Situation, previous *models.Situation) {
	ctx := context.Background()

	response, err := s.narrator.Narrate(ctx, sit, previous, s.toolRouter.Catalog())
	if err != nil {
		s.logger.Error("Narration failed",
			zap.String("situation_id", sit.ID),
			zap.Error(err),
		)
		return
	}

	notification := map[string]interface{}{
		"situation_id": sit.ID,
		"text":         response.Text,
		"confidence":   sit.Confidence,
		"zones":        sit.Features.Zones,
	}
	for k, v := range response.Fields {
		notification[k] = v
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		s.logger.Error("Failed to marshal notification",
			zap.Error(err),
		)
		return
	}

	topic := s.config.Ingest.NotificationTopic
	if err := s.mqttClient.Publish(topic, s.config.MQTT.QoS, false, payload); err != nil {
		s.logger.Error("Failed to publish notification",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Narration published",
		zap.String("situation_id", sit.ID),
		zap.String("topic", topic),
	)
}

// Stop 停止服务
// 顺序：先停摄取，再刷出批次余量，最后等叙述收尾并关闭连接
func (s *CorrelatorService) Stop() error {
	s.logger.Info("Stopping correlator service")

	s.mqttConsumer.Stop()
	s.cameraHandler.Stop()

	// 停止批处理器会同步刷出剩余读数
	s.batcher.Stop()

	// 等待在途的叙述 goroutine 结束
	s.wg.Wait()

	s.mqttClient.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
