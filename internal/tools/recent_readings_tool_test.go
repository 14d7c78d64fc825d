package tools

import (
	"context"
	"testing"
	"time"

	"housewatch-correlator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReadingSource struct {
	readings  []*models.Reading
	lastZone  string
	lastLimit int
}

func (f *fakeReadingSource) GetRecentReadings(ctx context.Context, zoneID string, limit int) ([]*models.Reading, error) {
	f.lastZone = zoneID
	f.lastLimit = limit
	if limit < len(f.readings) {
		return f.readings[:limit], nil
	}
	return f.readings, nil
}

func TestRecentReadingsTool_ReturnsReadings(t *testing.T) {
	score := 3.2
	source := &fakeReadingSource{readings: []*models.Reading{
		{
			SensorID:     "temp_srv",
			SensorType:   "temperature",
			ZoneID:       "server_room",
			Timestamp:    time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
			Value:        map[string]interface{}{"celsius": 45.0},
			AnomalyScore: &score,
		},
		{
			SensorID:   "motion_srv",
			SensorType: "motion",
			ZoneID:     "server_room",
			Timestamp:  time.Date(2026, 8, 25, 10, 0, 5, 0, time.UTC),
			Value:      map[string]interface{}{"state": "on"},
		},
	}}
	tool := NewRecentReadingsTool(source, 20)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"zone_id": "server_room",
	})

	require.NoError(t, err)
	assert.Equal(t, "server_room", result["zone_id"])
	assert.Equal(t, 2, result["count"])

	readings := result["readings"].([]map[string]interface{})
	require.Len(t, readings, 2)
	assert.Equal(t, "temp_srv", readings[0]["sensor_id"])
	assert.Equal(t, 3.2, readings[0]["anomaly_score"])
	_, hasScore := readings[1]["anomaly_score"]
	assert.False(t, hasScore)
}

func TestRecentReadingsTool_LimitFromParams(t *testing.T) {
	source := &fakeReadingSource{}
	tool := NewRecentReadingsTool(source, 20)

	// JSON 解码后的数字是 float64
	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"zone_id": "lobby",
		"limit":   float64(5),
	})

	require.NoError(t, err)
	assert.Equal(t, 5, source.lastLimit)
}

func TestRecentReadingsTool_DefaultLimit(t *testing.T) {
	source := &fakeReadingSource{}
	tool := NewRecentReadingsTool(source, 30)

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"zone_id": "lobby",
	})

	require.NoError(t, err)
	assert.Equal(t, 30, source.lastLimit)
}

func TestRecentReadingsTool_MissingZoneID(t *testing.T) {
	tool := NewRecentReadingsTool(&fakeReadingSource{}, 20)

	_, err := tool.Execute(context.Background(), map[string]interface{}{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "zone_id required")
}
