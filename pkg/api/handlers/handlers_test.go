package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chimeradata/chimera/pkg/objectstore"
	"github.com/chimeradata/chimera/pkg/registry"
	"github.com/chimeradata/chimera/pkg/tasks"
	"github.com/gofiber/fiber/v3"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRegistry struct {
	statuses []registry.SourceStatus
	entities map[string][]string
	latest   map[string][]registry.Record
	err      error
}

func (m *mockRegistry) Status(_ context.Context) ([]registry.SourceStatus, error) {
	return m.statuses, m.err
}

func (m *mockRegistry) Entities(_ context.Context, category string) ([]string, error) {
	return m.entities[category], m.err
}

func (m *mockRegistry) Latest(_ context.Context, category string) ([]registry.Record, error) {
	return m.latest[category], m.err
}

type mockStore struct {
	objects map[string][]byte
	err     error
}

func (m *mockStore) Put(_ context.Context, key string, payload []byte) error {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = payload

	return m.err
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}

	payload, ok := m.objects[key]
	if !ok {
		return nil, objectstore.ErrNotFound
	}

	return payload, nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.objects[key]

	return ok, m.err
}

type mockQueue struct {
	ingested  []string
	pipelined []string
	err       error
}

func (m *mockQueue) EnqueueIngest(category, _ string, _ ...asynq.Option) error {
	if m.err != nil {
		return m.err
	}
	m.ingested = append(m.ingested, category)

	return nil
}

func (m *mockQueue) EnqueuePipeline(taskType, _ string, _ ...asynq.Option) error {
	if m.err != nil {
		return m.err
	}
	m.pipelined = append(m.pipelined, taskType)

	return nil
}

func setupTestApp(reg *mockRegistry, store *mockStore, queue *mockQueue) *fiber.App {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	app := fiber.New()
	NewServer(log, reg, store, queue).Register(app.Group("/api/v1"))

	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	return resp, body
}

func TestGetHealth(t *testing.T) {
	app := setupTestApp(&mockRegistry{}, &mockStore{}, &mockQueue{})

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "ok", payload["status"])
}

func TestGetStatus(t *testing.T) {
	now := time.Now().UTC()
	reg := &mockRegistry{statuses: []registry.SourceStatus{
		{Source: "market", Entities: 2, LastStatus: registry.StatusSuccess, LastIngestion: &now},
	}}
	app := setupTestApp(reg, &mockStore{}, &mockQueue{})

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Sources []registry.SourceStatus `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Sources, 1)
	assert.Equal(t, "market", payload.Sources[0].Source)
}

func TestGetSources(t *testing.T) {
	reg := &mockRegistry{entities: map[string][]string{
		"market": {"market_SPY"},
		"gcp":    {"gcp_coherence"},
	}}
	app := setupTestApp(reg, &mockStore{}, &mockQueue{})

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/sources")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Sources map[string][]string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Len(t, payload.Sources, 5)
	assert.Equal(t, []string{"market_SPY"}, payload.Sources["market"])
}

func TestGetSourceData(t *testing.T) {
	reg := &mockRegistry{latest: map[string][]registry.Record{
		"schumann": {{SourceID: "schumann_tomsk", ObjectKey: "schumann/tomsk/x.json"}},
	}}
	app := setupTestApp(reg, &mockStore{}, &mockQueue{})

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/data/schumann")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Source  string            `json:"source"`
		Records []registry.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "schumann", payload.Source)
	require.Len(t, payload.Records, 1)
}

func TestGetSourceDataUnknownCategory(t *testing.T) {
	app := setupTestApp(&mockRegistry{}, &mockStore{}, &mockQueue{})

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/data/volcanic")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostIngest(t *testing.T) {
	queue := &mockQueue{}
	app := setupTestApp(&mockRegistry{}, &mockStore{}, queue)

	resp, _ := doRequest(t, app, http.MethodPost, "/api/v1/ingest/planetary")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{"planetary"}, queue.ingested)
}

func TestPostIngestConflict(t *testing.T) {
	queue := &mockQueue{err: asynq.ErrTaskIDConflict}
	app := setupTestApp(&mockRegistry{}, &mockStore{}, queue)

	resp, _ := doRequest(t, app, http.MethodPost, "/api/v1/ingest/planetary")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPostAnalyze(t *testing.T) {
	queue := &mockQueue{}
	app := setupTestApp(&mockRegistry{}, &mockStore{}, queue)

	resp, body := doRequest(t, app, http.MethodPost, "/api/v1/analyze")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{tasks.TypePipelineAlignment, tasks.TypePipelineCorrelation}, queue.pipelined)

	var payload struct {
		Enqueued []string `json:"enqueued"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Len(t, payload.Enqueued, 2)
}

func TestGetAlignedLatest(t *testing.T) {
	store := &mockStore{objects: map[string][]byte{
		"aligned/latest": []byte(`[{"timestamp":"2024-01-01T00:00:00Z","market_spy_close":470.5}]`),
	}}
	app := setupTestApp(&mockRegistry{}, store, &mockQueue{})

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/aligned/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
	assert.JSONEq(t, `[{"timestamp":"2024-01-01T00:00:00Z","market_spy_close":470.5}]`, string(body))
}

func TestGetCorrelationsLatestMissing(t *testing.T) {
	store := &mockStore{}
	app := setupTestApp(&mockRegistry{}, store, &mockQueue{})

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/correlations/latest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
