package tools

import (
	"context"
	"fmt"

	"housewatch-correlator/internal/repository"

	"go.uber.org/zap"
)

// CameraStore 摄像头查询接口
type CameraStore interface {
	GetCamera(ctx context.Context, cameraID string) (*repository.CameraInfo, error)
	GetZoneCameras(ctx context.Context, zoneID string) ([]repository.CameraInfo, error)
}

// Snapshot 抓拍结果
type Snapshot struct {
	Path     string // 快照文件路径
	Analysis string // 视觉分析结论
}

// SnapshotCapturer 抓拍执行接口
// 图像采集与视觉分析由外部系统实现，这里只定义注入点
type SnapshotCapturer interface {
	Capture(ctx context.Context, camera repository.CameraInfo) (*Snapshot, error)
}

// CameraTool 摄像头抓拍能力
// 按 camera_id 或 zone_id（取分区内第一个摄像头）解析目标摄像头
type CameraTool struct {
	store    CameraStore
	capturer SnapshotCapturer
	logger   *zap.Logger
}

// NewCameraTool 创建摄像头抓拍能力
func NewCameraTool(store CameraStore, capturer SnapshotCapturer, logger *zap.Logger) *CameraTool {
	return &CameraTool{
		store:    store,
		capturer: capturer,
		logger:   logger,
	}
}

// Execute 执行抓拍
func (t *CameraTool) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	cameraID, _ := params["camera_id"].(string)
	zoneID, _ := params["zone_id"].(string)

	camera, err := t.resolveCamera(ctx, cameraID, zoneID)
	if err != nil {
		return nil, err
	}

	if t.capturer == nil {
		return nil, fmt.Errorf("snapshot capture not configured")
	}
	if camera.RTSPURL == "" {
		return nil, fmt.Errorf("camera %s has no RTSP URL configured", camera.CameraID)
	}

	snapshot, err := t.capturer.Capture(ctx, *camera)
	if err != nil {
		t.logger.Error("Camera snapshot failed",
			zap.String("camera_id", camera.CameraID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to capture snapshot: %w", err)
	}

	return map[string]interface{}{
		"camera_id":     camera.CameraID,
		"camera_name":   camera.CameraName,
		"zone_id":       camera.ZoneID,
		"snapshot_path": snapshot.Path,
		"analysis":      snapshot.Analysis,
		"message": fmt.Sprintf("Snapshot from %s in %s: %s",
			camera.CameraName, camera.ZoneID, snapshot.Analysis),
	}, nil
}

// resolveCamera 解析目标摄像头：camera_id 优先，其次 zone_id 的第一个摄像头
func (t *CameraTool) resolveCamera(ctx context.Context, cameraID, zoneID string) (*repository.CameraInfo, error) {
	if cameraID != "" {
		return t.store.GetCamera(ctx, cameraID)
	}

	if zoneID != "" {
		cameras, err := t.store.GetZoneCameras(ctx, zoneID)
		if err != nil {
			return nil, err
		}
		if len(cameras) == 0 {
			return nil, fmt.Errorf("no camera found for zone=%s", zoneID)
		}
		return &cameras[0], nil
	}

	return nil, fmt.Errorf("camera_id or zone_id required")
}

// Description 能力描述
func (t *CameraTool) Description() string {
	return `Capture a snapshot from a security camera.

Usage:
- camera_snapshot(zone_id="lobby") - snapshot from the zone's first camera
- camera_snapshot(camera_id="cam_lobby_1") - snapshot from a specific camera

Returns camera metadata, the snapshot path and a vision analysis summary.`
}
