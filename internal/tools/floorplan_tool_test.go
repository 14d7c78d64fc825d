package tools

import (
	"context"
	"testing"

	"housewatch-correlator/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFloorPlanStore struct {
	zones    map[string]*repository.ZoneInfo
	adjacent map[string][]string
	cameras  map[string][]repository.CameraInfo
}

func (f *fakeFloorPlanStore) GetZoneInfo(ctx context.Context, zoneID string) (*repository.ZoneInfo, error) {
	if info, ok := f.zones[zoneID]; ok {
		return info, nil
	}
	return nil, assert.AnError
}

func (f *fakeFloorPlanStore) GetAdjacentZones(ctx context.Context, zoneID string) ([]string, error) {
	return f.adjacent[zoneID], nil
}

func (f *fakeFloorPlanStore) GetZoneCameras(ctx context.Context, zoneID string) ([]repository.CameraInfo, error) {
	return f.cameras[zoneID], nil
}

func newFakeFloorPlanStore() *fakeFloorPlanStore {
	return &fakeFloorPlanStore{
		zones: map[string]*repository.ZoneInfo{
			"lobby": {ZoneID: "lobby", ZoneName: "Main Lobby", SiteID: "hq", Floor: 1},
		},
		adjacent: map[string][]string{
			"lobby": {"hall", "kitchen"},
		},
		cameras: map[string][]repository.CameraInfo{
			"lobby": {
				{CameraID: "cam_lobby_1", CameraName: "Lobby North", ZoneID: "lobby", RTSPURL: "rtsp://cam1/stream"},
			},
		},
	}
}

func TestFloorPlanTool_AdjacentZones(t *testing.T) {
	tool := NewFloorPlanTool(newFakeFloorPlanStore())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"query":   "adjacent_zones",
		"zone_id": "lobby",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"hall", "kitchen"}, result["zones"])
}

func TestFloorPlanTool_ZoneInfo(t *testing.T) {
	tool := NewFloorPlanTool(newFakeFloorPlanStore())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"query":   "zone_info",
		"zone_id": "lobby",
	})

	require.NoError(t, err)
	zone := result["zone"].(map[string]interface{})
	assert.Equal(t, "Main Lobby", zone["zone_name"])
	assert.Equal(t, "hq", zone["site_id"])
	assert.Equal(t, 1, zone["floor"])
}

func TestFloorPlanTool_ZoneCameras(t *testing.T) {
	tool := NewFloorPlanTool(newFakeFloorPlanStore())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"query":   "zone_cameras",
		"zone_id": "lobby",
	})

	require.NoError(t, err)
	cameras := result["cameras"].([]map[string]interface{})
	require.Len(t, cameras, 1)
	assert.Equal(t, "cam_lobby_1", cameras[0]["camera_id"])
}

func TestFloorPlanTool_MissingZoneID(t *testing.T) {
	tool := NewFloorPlanTool(newFakeFloorPlanStore())

	for _, query := range []string{"adjacent_zones", "zone_info", "zone_cameras"} {
		_, err := tool.Execute(context.Background(), map[string]interface{}{"query": query})
		require.Error(t, err, query)
		assert.Contains(t, err.Error(), "zone_id required")
	}
}

func TestFloorPlanTool_UnknownQuery(t *testing.T) {
	tool := NewFloorPlanTool(newFakeFloorPlanStore())

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"query":   "teleport",
		"zone_id": "lobby",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown query type")
}
