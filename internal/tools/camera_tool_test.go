package tools

import (
	"context"
	"fmt"
	"testing"

	"housewatch-correlator/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCameraStore struct {
	cameras map[string]*repository.CameraInfo
	byZone  map[string][]repository.CameraInfo
}

func (f *fakeCameraStore) GetCamera(ctx context.Context, cameraID string) (*repository.CameraInfo, error) {
	if cam, ok := f.cameras[cameraID]; ok {
		return cam, nil
	}
	return nil, fmt.Errorf("camera not found: camera_id=%s", cameraID)
}

func (f *fakeCameraStore) GetZoneCameras(ctx context.Context, zoneID string) ([]repository.CameraInfo, error) {
	return f.byZone[zoneID], nil
}

type fakeCapturer struct {
	snapshot *Snapshot
	err      error
	captured []string
}

func (f *fakeCapturer) Capture(ctx context.Context, camera repository.CameraInfo) (*Snapshot, error) {
	f.captured = append(f.captured, camera.CameraID)
	return f.snapshot, f.err
}

func newFakeCameraStore() *fakeCameraStore {
	cam1 := &repository.CameraInfo{
		CameraID: "cam_lobby_1", CameraName: "Lobby North", ZoneID: "lobby", RTSPURL: "rtsp://cam1/stream",
	}
	return &fakeCameraStore{
		cameras: map[string]*repository.CameraInfo{"cam_lobby_1": cam1},
		byZone: map[string][]repository.CameraInfo{
			"lobby": {*cam1},
		},
	}
}

func TestCameraTool_SnapshotByCameraID(t *testing.T) {
	capturer := &fakeCapturer{snapshot: &Snapshot{Path: "/tmp/snap.jpg", Analysis: "empty lobby"}}
	tool := NewCameraTool(newFakeCameraStore(), capturer, zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"camera_id": "cam_lobby_1",
	})

	require.NoError(t, err)
	assert.Equal(t, "/tmp/snap.jpg", result["snapshot_path"])
	assert.Equal(t, "empty lobby", result["analysis"])
	assert.Equal(t, []string{"cam_lobby_1"}, capturer.captured)
}

func TestCameraTool_SnapshotByZoneID(t *testing.T) {
	capturer := &fakeCapturer{snapshot: &Snapshot{Path: "/tmp/snap.jpg", Analysis: "one person"}}
	tool := NewCameraTool(newFakeCameraStore(), capturer, zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"zone_id": "lobby",
	})

	require.NoError(t, err)
	assert.Equal(t, "cam_lobby_1", result["camera_id"])
	assert.Contains(t, result["message"], "Lobby North")
}

func TestCameraTool_NoCameraInZone(t *testing.T) {
	tool := NewCameraTool(newFakeCameraStore(), &fakeCapturer{}, zap.NewNop())

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"zone_id": "basement",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no camera found")
}

func TestCameraTool_MissingParams(t *testing.T) {
	tool := NewCameraTool(newFakeCameraStore(), &fakeCapturer{}, zap.NewNop())

	_, err := tool.Execute(context.Background(), map[string]interface{}{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera_id or zone_id required")
}

func TestCameraTool_CapturerNotConfigured(t *testing.T) {
	tool := NewCameraTool(newFakeCameraStore(), nil, zap.NewNop())

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"camera_id": "cam_lobby_1",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot capture not configured")
}

func TestCameraTool_CaptureFailure(t *testing.T) {
	capturer := &fakeCapturer{err: fmt.Errorf("rtsp stream unreachable")}
	tool := NewCameraTool(newFakeCameraStore(), capturer, zap.NewNop())

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"camera_id": "cam_lobby_1",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rtsp stream unreachable")
}
