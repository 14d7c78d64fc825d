package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRepo(t *testing.T) (*FloorPlanRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewFloorPlanRepository(db, zap.NewNop())
	return repo, mock
}

func TestGetZoneInfo_Success(t *testing.T) {
	repo, mock := setupTestRepo(t)

	rows := sqlmock.NewRows([]string{"zone_id", "zone_name", "site_id", "floor"}).
		AddRow("lobby", "Main Lobby", "hq", 1)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT zone_id, zone_name, site_id, floor")).
		WithArgs("lobby").
		WillReturnRows(rows)

	info, err := repo.GetZoneInfo(context.Background(), "lobby")

	require.NoError(t, err)
	assert.Equal(t, "lobby", info.ZoneID)
	assert.Equal(t, "Main Lobby", info.ZoneName)
	assert.Equal(t, "hq", info.SiteID)
	assert.Equal(t, 1, info.Floor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetZoneInfo_NotFound(t *testing.T) {
	repo, mock := setupTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT zone_id, zone_name, site_id, floor")).
		WithArgs("void").
		WillReturnRows(sqlmock.NewRows([]string{"zone_id", "zone_name", "site_id", "floor"}))

	info, err := repo.GetZoneInfo(context.Background(), "void")

	assert.Nil(t, info)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zone not found")
}

func TestGetZoneInfo_EmptyZoneID(t *testing.T) {
	repo, _ := setupTestRepo(t)

	_, err := repo.GetZoneInfo(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zone_id is required")
}

func TestGetAdjacentZones_Success(t *testing.T) {
	repo, mock := setupTestRepo(t)

	rows := sqlmock.NewRows([]string{"adjacent_zone_id"}).
		AddRow("hall").
		AddRow("kitchen")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT adjacent_zone_id")).
		WithArgs("lobby").
		WillReturnRows(rows)

	zones, err := repo.GetAdjacentZones(context.Background(), "lobby")

	require.NoError(t, err)
	assert.Equal(t, []string{"hall", "kitchen"}, zones)
}

func TestGetAdjacentZones_NoNeighbors(t *testing.T) {
	repo, mock := setupTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT adjacent_zone_id")).
		WithArgs("isolated").
		WillReturnRows(sqlmock.NewRows([]string{"adjacent_zone_id"}))

	zones, err := repo.GetAdjacentZones(context.Background(), "isolated")

	require.NoError(t, err)
	assert.Empty(t, zones)
}

func TestGetZoneCameras_Success(t *testing.T) {
	repo, mock := setupTestRepo(t)

	rows := sqlmock.NewRows([]string{"camera_id", "camera_name", "zone_id", "rtsp_url"}).
		AddRow("cam_lobby_1", "Lobby North", "lobby", "rtsp://cam1/stream").
		AddRow("cam_lobby_2", "Lobby South", "lobby", "")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT camera_id, camera_name, zone_id")).
		WithArgs("lobby").
		WillReturnRows(rows)

	cameras, err := repo.GetZoneCameras(context.Background(), "lobby")

	require.NoError(t, err)
	require.Len(t, cameras, 2)
	assert.Equal(t, "cam_lobby_1", cameras[0].CameraID)
	assert.Equal(t, "rtsp://cam1/stream", cameras[0].RTSPURL)
	assert.Equal(t, "", cameras[1].RTSPURL)
}

func TestGetCamera_Success(t *testing.T) {
	repo, mock := setupTestRepo(t)

	rows := sqlmock.NewRows([]string{"camera_id", "camera_name", "zone_id", "rtsp_url"}).
		AddRow("cam_lobby_1", "Lobby North", "lobby", "rtsp://cam1/stream")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT camera_id, camera_name, zone_id")).
		WithArgs("cam_lobby_1").
		WillReturnRows(rows)

	cam, err := repo.GetCamera(context.Background(), "cam_lobby_1")

	require.NoError(t, err)
	assert.Equal(t, "Lobby North", cam.CameraName)
	assert.Equal(t, "lobby", cam.ZoneID)
}

func TestGetCamera_NotFound(t *testing.T) {
	repo, mock := setupTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT camera_id, camera_name, zone_id")).
		WithArgs("cam_missing").
		WillReturnRows(sqlmock.NewRows([]string{"camera_id", "camera_name", "zone_id", "rtsp_url"}))

	cam, err := repo.GetCamera(context.Background(), "cam_missing")

	assert.Nil(t, cam)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera not found")
}

func TestGetRoomZoneMap_Success(t *testing.T) {
	repo, mock := setupTestRepo(t)

	rows := sqlmock.NewRows([]string{"room_name", "zone_id"}).
		AddRow("kitchen", "kitchen_zone").
		AddRow("Living Room", "living_room")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT room_name, zone_id")).
		WillReturnRows(rows)

	zoneMap, err := repo.GetRoomZoneMap(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"kitchen":     "kitchen_zone",
		"Living Room": "living_room",
	}, zoneMap)
}
