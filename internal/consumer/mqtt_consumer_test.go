package consumer

import (
	"context"
	"fmt"
	"testing"

	"housewatch-correlator/internal/anomaly"
	"housewatch-correlator/internal/batcher"
	"housewatch-correlator/internal/config"
	"housewatch-correlator/internal/filter"
	"housewatch-correlator/internal/models"
	"housewatch-correlator/internal/validator"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeZoneSource struct {
	zoneMap map[string]string
	err     error
}

func (f *fakeZoneSource) GetRoomZoneMap(ctx context.Context) (map[string]string, error) {
	return f.zoneMap, f.err
}

func setupConsumer(t *testing.T) (*MQTTConsumer, *batcher.Batcher, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Filter.DedupWindowSeconds = 60
	cfg.Filter.BatteryFloorPct = 5
	cfg.Filter.SignalFloorDBm = -90
	cfg.Filter.Downsample.SensorTypes = nil
	cfg.Filter.Downsample.AcceptProbability = 1.0
	cfg.Anomaly.HistorySize = 100
	cfg.Anomaly.ZThreshold = 2.5
	cfg.Anomaly.ValueKeys = []string{"celsius", "reading", "count"}
	cfg.Batch.TimeoutSeconds = 300
	cfg.Situation.AuditStream = "housewatch:audit"
	cfg.Situation.RecentKeyPrefix = "housewatch:zone:"
	cfg.Situation.RecentLimit = 50

	logger := zap.NewNop()
	b := batcher.NewBatcher(cfg, func(batch []*models.Reading) {}, logger)
	t.Cleanup(b.Stop)

	c := NewMQTTConsumer(
		cfg,
		nil, // HandleMessage 不触碰 MQTT 客户端
		validator.NewValidator(logger),
		filter.NewNoiseFilter(cfg, logger),
		anomaly.NewDetector(cfg, logger),
		b,
		NewCacheManager(cfg, client, logger),
		&fakeZoneSource{zoneMap: map[string]string{"kitchen": "kitchen_zone"}},
		logger,
	)
	require.NoError(t, c.RefreshZoneMap(context.Background()))
	return c, b, client
}

func canonicalPayload(sensorID string, celsius float64) []byte {
	return []byte(fmt.Sprintf(
		`{"sensor_id":%q,"sensor_type":"temperature","zone_id":"server_room","ts":"2026-08-25T10:00:00Z","value":{"celsius":%g}}`,
		sensorID, celsius,
	))
}

func TestHandleMessage_ValidReadingEntersBatch(t *testing.T) {
	c, b, client := setupConsumer(t)

	err := c.HandleMessage("office/hq/1/server_room/temperature/temp_srv",
		canonicalPayload("temp_srv", 21.5))

	require.NoError(t, err)
	assert.Equal(t, 1, b.Size())

	// 最近读数已记录
	length, err := client.LLen(context.Background(), "housewatch:zone:server_room").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestHandleMessage_DuplicateSuppressed(t *testing.T) {
	c, b, _ := setupConsumer(t)

	payload := canonicalPayload("temp_srv", 21.5)
	require.NoError(t, c.HandleMessage("topic", payload))
	require.NoError(t, c.HandleMessage("topic", payload))

	// 窗口内完全相同的读数只进一次批次
	assert.Equal(t, 1, b.Size())
}

func TestHandleMessage_ValidationFailureGoesToAudit(t *testing.T) {
	c, b, client := setupConsumer(t)

	err := c.HandleMessage("topic", []byte(`{"bogus":true}`))

	require.NoError(t, err)
	assert.Equal(t, 0, b.Size())

	length, err := client.XLen(context.Background(), "housewatch:audit").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestHandleMessage_NonJSONDropped(t *testing.T) {
	c, b, client := setupConsumer(t)

	err := c.HandleMessage("topic", []byte("not json at all"))

	require.NoError(t, err)
	assert.Equal(t, 0, b.Size())

	// 非 JSON 直接丢弃，不进审计流
	length, _ := client.XLen(context.Background(), "housewatch:audit").Result()
	assert.Equal(t, int64(0), length)
}

func TestHandleMessage_LegacyFormatMapped(t *testing.T) {
	c, b, _ := setupConsumer(t)

	err := c.HandleMessage("topic",
		[]byte(`{"sensor":"temp_kitchen","value":22.5,"room":"kitchen"}`))

	require.NoError(t, err)
	require.Equal(t, 1, b.Size())
}
