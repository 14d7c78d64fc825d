package tools

import (
	"context"
	"fmt"

	"housewatch-correlator/internal/repository"
)

// FloorPlanStore 平面图查询接口（由 repository.FloorPlanRepository 实现）
type FloorPlanStore interface {
	GetZoneInfo(ctx context.Context, zoneID string) (*repository.ZoneInfo, error)
	GetAdjacentZones(ctx context.Context, zoneID string) ([]string, error)
	GetZoneCameras(ctx context.Context, zoneID string) ([]repository.CameraInfo, error)
}

// FloorPlanTool 平面图空间查询能力
type FloorPlanTool struct {
	store FloorPlanStore
}

// NewFloorPlanTool 创建平面图查询能力
func NewFloorPlanTool(store FloorPlanStore) *FloorPlanTool {
	return &FloorPlanTool{store: store}
}

// Execute 执行平面图查询
// 支持的 query：adjacent_zones、zone_info、zone_cameras
func (t *FloorPlanTool) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	query, _ := params["query"].(string)
	zoneID, _ := params["zone_id"].(string)

	switch query {
	case "adjacent_zones":
		if zoneID == "" {
			return nil, fmt.Errorf("zone_id required")
		}
		zones, err := t.store.GetAdjacentZones(ctx, zoneID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"zones": zones}, nil

	case "zone_info":
		if zoneID == "" {
			return nil, fmt.Errorf("zone_id required")
		}
		info, err := t.store.GetZoneInfo(ctx, zoneID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"zone": map[string]interface{}{
				"zone_id":   info.ZoneID,
				"zone_name": info.ZoneName,
				"site_id":   info.SiteID,
				"floor":     info.Floor,
			},
		}, nil

	case "zone_cameras":
		if zoneID == "" {
			return nil, fmt.Errorf("zone_id required")
		}
		cameras, err := t.store.GetZoneCameras(ctx, zoneID)
		if err != nil {
			return nil, err
		}
		list := make([]map[string]interface{}, 0, len(cameras))
		for _, cam := range cameras {
			list = append(list, map[string]interface{}{
				"camera_id":   cam.CameraID,
				"camera_name": cam.CameraName,
				"zone_id":     cam.ZoneID,
			})
		}
		return map[string]interface{}{"cameras": list}, nil

	default:
		return nil, fmt.Errorf("unknown query type: %q", query)
	}
}

// Description 能力描述
func (t *FloorPlanTool) Description() string {
	return `Spatial queries against the floor plan.

Usage:
- floor_plan(query="adjacent_zones", zone_id="lobby") - zones adjacent to a zone
- floor_plan(query="zone_info", zone_id="lobby") - zone name, site and floor
- floor_plan(query="zone_cameras", zone_id="lobby") - cameras covering a zone`
}
