package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// FloorPlanRepository 平面图仓库（空间知识库的查询接口）
// 数据的加载与维护由外部系统负责，本服务只读
type FloorPlanRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFloorPlanRepository 创建平面图仓库
func NewFloorPlanRepository(db *sql.DB, logger *zap.Logger) *FloorPlanRepository {
	return &FloorPlanRepository{
		db:     db,
		logger: logger,
	}
}

// ZoneInfo 分区信息
type ZoneInfo struct {
	ZoneID   string
	ZoneName string
	SiteID   string
	Floor    int
}

// CameraInfo 摄像头信息
type CameraInfo struct {
	CameraID   string
	CameraName string
	ZoneID     string
	RTSPURL    string
}

// GetZoneInfo 获取分区信息
func (r *FloorPlanRepository) GetZoneInfo(ctx context.Context, zoneID string) (*ZoneInfo, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("zone_id is required")
	}

	query := `
		SELECT zone_id, zone_name, site_id, floor
		FROM zones
		WHERE zone_id = $1
	`

	var info ZoneInfo
	err := r.db.QueryRowContext(ctx, query, zoneID).Scan(
		&info.ZoneID,
		&info.ZoneName,
		&info.SiteID,
		&info.Floor,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("zone not found: zone_id=%s", zoneID)
		}
		return nil, fmt.Errorf("failed to query zone: %w", err)
	}

	return &info, nil
}

// GetAdjacentZones 获取相邻分区列表
func (r *FloorPlanRepository) GetAdjacentZones(ctx context.Context, zoneID string) ([]string, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("zone_id is required")
	}

	query := `
		SELECT adjacent_zone_id
		FROM zone_adjacency
		WHERE zone_id = $1
		ORDER BY adjacent_zone_id
	`

	rows, err := r.db.QueryContext(ctx, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjacency: %w", err)
	}
	defer rows.Close()

	var zones []string
	for rows.Next() {
		var adjacent string
		if err := rows.Scan(&adjacent); err != nil {
			return nil, fmt.Errorf("failed to scan adjacent zone: %w", err)
		}
		zones = append(zones, adjacent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate adjacency rows: %w", err)
	}

	return zones, nil
}

// GetZoneCameras 获取分区内的摄像头列表
func (r *FloorPlanRepository) GetZoneCameras(ctx context.Context, zoneID string) ([]CameraInfo, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("zone_id is required")
	}

	query := `
		SELECT camera_id, camera_name, zone_id, COALESCE(rtsp_url, '')
		FROM cameras
		WHERE zone_id = $1
		ORDER BY camera_id
	`

	rows, err := r.db.QueryContext(ctx, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []CameraInfo
	for rows.Next() {
		var cam CameraInfo
		if err := rows.Scan(&cam.CameraID, &cam.CameraName, &cam.ZoneID, &cam.RTSPURL); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, cam)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate camera rows: %w", err)
	}

	return cameras, nil
}

// GetCamera 按 camera_id 获取摄像头
func (r *FloorPlanRepository) GetCamera(ctx context.Context, cameraID string) (*CameraInfo, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("camera_id is required")
	}

	query := `
		SELECT camera_id, camera_name, zone_id, COALESCE(rtsp_url, '')
		FROM cameras
		WHERE camera_id = $1
	`

	var cam CameraInfo
	err := r.db.QueryRowContext(ctx, query, cameraID).Scan(
		&cam.CameraID,
		&cam.CameraName,
		&cam.ZoneID,
		&cam.RTSPURL,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("camera not found: camera_id=%s", cameraID)
		}
		return nil, fmt.Errorf("failed to query camera: %w", err)
	}

	return &cam, nil
}

// GetRoomZoneMap 获取 legacy room 名称到 zone_id 的映射
// 供校验器转换旧家居格式和 Home Assistant 格式使用
func (r *FloorPlanRepository) GetRoomZoneMap(ctx context.Context) (map[string]string, error) {
	query := `
		SELECT room_name, zone_id
		FROM zone_rooms
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query room zone map: %w", err)
	}
	defer rows.Close()

	zoneMap := make(map[string]string)
	for rows.Next() {
		var roomName, zoneID string
		if err := rows.Scan(&roomName, &zoneID); err != nil {
			return nil, fmt.Errorf("failed to scan room mapping: %w", err)
		}
		zoneMap[roomName] = zoneID
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate room mapping rows: %w", err)
	}

	return zoneMap, nil
}
