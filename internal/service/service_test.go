package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VectorBarks/smart-climate-sub002/internal/config"
	"github.com/VectorBarks/smart-climate-sub002/internal/engine"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/mqtt"
)

const testEntity = "climate.living_room"

func testService(t *testing.T) (*Service, *mqtt.FakeClient) {
	t.Helper()
	cfg := &config.Config{
		ListenAddr: ":0",
		DataDir:    t.TempDir(),
		Entities: []config.Entity{
			{ID: testEntity, EnableLearning: true, PowerSensor: "sensor.ac_power"},
		},
	}
	fake := mqtt.NewFakeClient()
	return New(cfg, fake, nil), fake
}

func startService(t *testing.T) (*Service, *mqtt.FakeClient) {
	t.Helper()
	svc, fake := testService(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, svc.Start(ctx))
	return svc, fake
}

func feedbackInput() model.OffsetInput {
	return model.OffsetInput{
		ACInternalTemp:   model.Float(22.0),
		RoomTemp:         model.Float(24.0),
		PowerConsumption: model.Float(450.0),
		Mode:             model.ModeNone,
		HVACMode:         model.String("cool"),
		Hour:             14,
		Weekday:          time.Tuesday,
	}
}

func TestService_StartPublishesStartupEvent(t *testing.T) {
	_, fake := startService(t)
	require.Len(t, fake.SystemEvents, 1)
	assert.Equal(t, "STARTUP", fake.SystemEvents[0].Event)
}

func TestService_SnapshotPublishesResult(t *testing.T) {
	svc, fake := startService(t)

	// The snapshot is not ready until both critical temperatures arrive.
	fake.Inject(testEntity, mqtt.FieldACTemp, "22.0")
	require.Empty(t, fake.Results)
	fake.Inject(testEntity, mqtt.FieldRoomTemp, "24.0")

	require.Len(t, fake.Results, 1)
	got := fake.Results[0]
	assert.Equal(t, testEntity, got.EntityID)
	assert.NotEmpty(t, got.Reason)

	obs := svc.hist.Entities()
	assert.Contains(t, obs, testEntity)
}

func TestService_SnapshotForUnknownEntityIgnored(t *testing.T) {
	_, fake := startService(t)
	fake.Inject("climate.garage", mqtt.FieldACTemp, "22.0")
	fake.Inject("climate.garage", mqtt.FieldRoomTemp, "24.0")
	assert.Empty(t, fake.Results)
}

func TestService_RecordFeedback(t *testing.T) {
	svc, _ := startService(t)

	err := svc.RecordFeedback("climate.nope", -1.0, -1.2, feedbackInput(), time.Now().Add(-time.Hour), engine.SourceManual)
	assert.Error(t, err)

	err = svc.RecordFeedback(testEntity, -1.0, -1.2, feedbackInput(), time.Now().Add(-time.Hour), engine.SourceManual)
	require.NoError(t, err)

	eng, ok := svc.Engine(testEntity)
	require.True(t, ok)
	assert.Equal(t, 1, eng.Statistics().SamplesCollected)
}

func TestService_SaveAllWritesStateFiles(t *testing.T) {
	svc, _ := startService(t)
	svc.SaveAll()

	path := filepath.Join(svc.cfg.DataDir, testEntity+"_learning.json")
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestService_SaveFailurePublishesEvent(t *testing.T) {
	cfg := &config.Config{
		DataDir: filepath.Join(t.TempDir(), "missing", "nested"),
		Entities: []config.Entity{
			{ID: testEntity, EnableLearning: true},
		},
	}
	fake := mqtt.NewFakeClient()
	svc := New(cfg, fake, nil)
	svc.SaveAll()

	require.Len(t, fake.SystemEvents, 1)
	assert.Equal(t, "SAVE_FAILED", fake.SystemEvents[0].Event)
	assert.NotEmpty(t, fake.SystemEvents[0].Reason)
}

func TestService_ApplyConfigTogglesLearning(t *testing.T) {
	svc, _ := startService(t)
	eng, _ := svc.Engine(testEntity)
	require.True(t, eng.LearningEnabled())

	svc.ApplyConfig(&config.Config{
		DataDir: svc.cfg.DataDir,
		Entities: []config.Entity{
			{ID: testEntity, EnableLearning: false},
			{ID: "climate.added_later", EnableLearning: true},
		},
	})
	assert.False(t, eng.LearningEnabled())

	// Entities not in the running topology are skipped, not created.
	_, ok := svc.Engine("climate.added_later")
	assert.False(t, ok)
}

func TestService_Shutdown(t *testing.T) {
	svc, fake := startService(t)
	svc.Shutdown("test")

	assert.True(t, fake.Closed)
	events := make([]string, 0, len(fake.SystemEvents))
	for _, ev := range fake.SystemEvents {
		events = append(events, ev.Event)
	}
	assert.Contains(t, events, "SHUTDOWN")
}

func TestRouter_Health(t *testing.T) {
	svc, _ := testService(t)
	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["entities"])
}

func TestRouter_Entities(t *testing.T) {
	svc, _ := testService(t)
	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/entities")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Entities []string `json:"entities"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{testEntity}, body.Entities)
}

func TestRouter_Dashboard(t *testing.T) {
	svc, _ := testService(t)
	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/entities/" + testEntity + "/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap engine.DashboardSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, testEntity, snap.EntityID)
	assert.True(t, snap.LearningEnabled)
}

func TestRouter_UnknownEntity(t *testing.T) {
	svc, _ := testService(t)
	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/entities/climate.nope/dashboard")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_LearningToggle(t *testing.T) {
	svc, _ := testService(t)
	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/entities/"+testEntity+"/learning",
		"application/json", bytes.NewBufferString(`{"enabled": false}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	eng, _ := svc.Engine(testEntity)
	assert.False(t, eng.LearningEnabled())

	resp, err = http.Post(srv.URL+"/api/entities/"+testEntity+"/learning",
		"application/json", bytes.NewBufferString("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Reset(t *testing.T) {
	svc, _ := startService(t)
	eng, _ := svc.Engine(testEntity)
	require.NoError(t, svc.RecordFeedback(testEntity, -1.0, -1.2, feedbackInput(), time.Now().Add(-time.Hour), engine.SourceManual))
	require.Equal(t, 1, eng.Statistics().SamplesCollected)

	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/entities/"+testEntity+"/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, eng.Statistics().SamplesCollected)
}

func TestRouter_Save(t *testing.T) {
	svc, _ := testService(t)
	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/entities/"+testEntity+"/save", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = os.Stat(filepath.Join(svc.cfg.DataDir, testEntity+"_learning.json"))
	assert.NoError(t, err)
}

func TestService_RestoresPersistedState(t *testing.T) {
	dataDir := t.TempDir()
	cfg := &config.Config{
		DataDir: dataDir,
		Entities: []config.Entity{
			{ID: testEntity, EnableLearning: true},
		},
	}

	first := New(cfg, mqtt.NewFakeClient(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, first.Start(ctx))
	require.NoError(t, first.RecordFeedback(testEntity, -1.0, -1.2, feedbackInput(), time.Now().Add(-time.Hour), engine.SourceManual))
	first.SaveAll()
	cancel()

	second := New(cfg, mqtt.NewFakeClient(), nil)
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	require.NoError(t, second.Start(ctx2))

	eng, ok := second.Engine(testEntity)
	require.True(t, ok)
	assert.Equal(t, 1, eng.Statistics().SamplesCollected)
}
