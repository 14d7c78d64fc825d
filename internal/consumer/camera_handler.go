package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/models"
	"housewatch-correlator/internal/repository"
	"housewatch-correlator/pkg/mqtt"

	"go.uber.org/zap"
)

// CameraZoneStore 摄像头与分区查询接口（由 repository.FloorPlanRepository 实现）
type CameraZoneStore interface {
	GetCamera(ctx context.Context, cameraID string) (*repository.CameraInfo, error)
	GetZoneInfo(ctx context.Context, zoneID string) (*repository.ZoneInfo, error)
}

// ToolExecutor 工具执行接口（由 tools.Router 实现）
type ToolExecutor interface {
	Execute(ctx context.Context, name string, params map[string]interface{}) models.ToolResult
}

// MQTTConn MQTT 连接接口（由 pkg/mqtt.Client 实现）
type MQTTConn interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
}

// CameraRequestHandler 仪表盘摄像头抓拍请求处理器
// 请求经工具路由器执行抓拍，结果作为传感器事件回发到 office 主题树，
// 从而走与普通传感器相同的摄取链路
type CameraRequestHandler struct {
	config     *config.Config
	mqttClient MQTTConn
	executor   ToolExecutor
	store      CameraZoneStore
	logger     *zap.Logger
}

// NewCameraRequestHandler 创建摄像头请求处理器
func NewCameraRequestHandler(
	cfg *config.Config,
	mqttClient MQTTConn,
	executor ToolExecutor,
	store CameraZoneStore,
	logger *zap.Logger,
) *CameraRequestHandler {
	return &CameraRequestHandler{
		config:     cfg,
		mqttClient: mqttClient,
		executor:   executor,
		store:      store,
		logger:     logger,
	}
}

// Start 订阅摄像头请求主题
func (h *CameraRequestHandler) Start() error {
	topic := h.config.Ingest.CameraRequestTopic
	if err := h.mqttClient.Subscribe(topic, h.config.MQTT.QoS, h.HandleRequest); err != nil {
		return fmt.Errorf("failed to subscribe to camera requests: %w", err)
	}

	h.logger.Info("Camera request handler started",
		zap.String("topic", topic),
	)

	return nil
}

// cameraRequest 仪表盘请求载荷
type cameraRequest struct {
	CameraID  string `json:"camera_id"`
	Timestamp string `json:"timestamp"`
}

// HandleRequest 处理单条抓拍请求
func (h *CameraRequestHandler) HandleRequest(topic string, payload []byte) error {
	ctx := context.Background()

	var request cameraRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		h.logger.Warn("Dropping malformed camera request",
			zap.Error(err),
		)
		return nil
	}
	if request.CameraID == "" {
		h.logger.Warn("Camera request without camera_id")
		return nil
	}

	// 1. 校验摄像头存在并取其分区
	camera, err := h.store.GetCamera(ctx, request.CameraID)
	if err != nil {
		h.logger.Warn("Invalid camera_id in request",
			zap.String("camera_id", request.CameraID),
			zap.Error(err),
		)
		return nil
	}

	// 2. 经工具路由器执行抓拍（受统一的时间预算约束）
	result := h.executor.Execute(ctx, "camera_snapshot", map[string]interface{}{
		"camera_id": request.CameraID,
	})
	if !result.OK() {
		h.logger.Error("Camera capture failed",
			zap.String("camera_id", request.CameraID),
			zap.String("error", result.Error),
		)
		return nil
	}

	// 3. 解析分区楼层，缺失时默认 1 层
	floor := 1
	if info, err := h.store.GetZoneInfo(ctx, camera.ZoneID); err == nil {
		floor = info.Floor
	}

	// 4. 构建传感器事件并回发到 office 主题树
	eventTopic := fmt.Sprintf("%s/default/%d/%s/camera/%s",
		h.config.Ingest.CameraEventPrefix, floor, camera.ZoneID, camera.CameraID)

	event := map[string]interface{}{
		"entity_id": fmt.Sprintf("camera.%s", camera.CameraID),
		"state":     "snapshot_captured",
		"attributes": map[string]interface{}{
			"zone":            camera.ZoneID,
			"camera_name":     camera.CameraName,
			"vision_analysis": result.Payload["analysis"],
			"snapshot_path":   result.Payload["snapshot_path"],
			"timestamp":       request.Timestamp,
		},
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal camera event: %w", err)
	}

	if err := h.mqttClient.Publish(eventTopic, h.config.MQTT.QoS, false, eventJSON); err != nil {
		return fmt.Errorf("failed to publish camera event: %w", err)
	}

	h.logger.Info("Camera snapshot published",
		zap.String("camera_id", camera.CameraID),
		zap.String("topic", eventTopic),
	)

	return nil
}

// Stop 取消订阅
func (h *CameraRequestHandler) Stop() {
	if err := h.mqttClient.Unsubscribe(h.config.Ingest.CameraRequestTopic); err != nil {
		h.logger.Warn("Failed to unsubscribe camera requests",
			zap.Error(err),
		)
	}
}
