package main

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

	"github.com/ldn-newbuild/inventory-cli/internal/anomaly"
	"github.com/ldn-newbuild/inventory-cli/internal/config"
	"github.com/ldn-newbuild/inventory-cli/internal/events"
	"github.com/ldn-newbuild/inventory-cli/internal/hottest"
	"github.com/ldn-newbuild/inventory-cli/internal/ingest"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/publish"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
)

var testPolicy = config.PolicyConfig{
	MaxErrorRate:      0.05,
	LargeChangePct:    0.15,
	PriceDropPct:      0.20,
	PSFZScore:         3.0,
	SizeSimilarityPct: 0.03,
}

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	ingestSvc, err := ingest.NewService(s, testPolicy, config.IngestConfig{
		MappingPath:   filepath.Join(t.TempDir(), "mappings.yaml"),
		DefaultSource: "upload",
	})
	require.NoError(t, err)

	scorer := hottest.NewScorer(s)
	validator := anomaly.NewValidator(s, testPolicy)

	// Synchronous in tests: publish handlers call the scorer and validator
	// through the dispatcher, which drains on Close.
	dispatcher := events.NewDispatcher(16)
	dispatcher.Subscribe(events.TopicHottestRefresh, func(ctx context.Context, ev events.Event) error {
		_, err := scorer.Refresh(ctx, ev.DevID)
		return err
	})
	dispatcher.Subscribe(events.TopicValidateUnits, func(ctx context.Context, ev events.Event) error {
		_, err := validator.Run(ctx, ev.DevID, ev.Snapshot)
		return err
	})

	env := &appEnv{
		Store:      s,
		Ingest:     ingestSvc,
		Merger:     publish.NewMerger(s, dispatcher),
		Scorer:     scorer,
		Validator:  validator,
		Dispatcher: dispatcher,
	}
	t.Cleanup(env.Close)
	return env
}

func seedDevelopment(t *testing.T, env *appEnv) {
	t.Helper()
	require.NoError(t, env.Store.UpsertDevelopment(context.Background(), model.Development{
		ID: "dev-1", Name: "Riverside Quarter", Postcode: "SW18 1AA",
	}))
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Health(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_IngestThenPublish(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	router := newRouter(env)

	csvPath := filepath.Join(t.TempDir(), "list.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"Unit,Beds,Size (sqft),Price,Status\nA-101,1,540,450000,Available\n"), 0o644))

	rec := postJSON(t, router, "/api/ingest", map[string]string{
		"dev_id": "dev-1", "file_path": csvPath, "uploaded_by": "sales-ops",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ingestResp struct {
		PriceList model.PriceList `json:"price_list"`
		Diff      model.Diff      `json:"diff"`
		Published bool            `json:"published"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ingestResp))
	// First upload on empty inventory is blocked by the gate.
	assert.False(t, ingestResp.Published)
	assert.Equal(t, 1, ingestResp.Diff.NewUnits)

	rec = postJSON(t, router, "/api/publish", map[string]string{
		"price_list_id": ingestResp.PriceList.ID, "published_by": "reviewer",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	units, err := env.Store.ListUnits(context.Background(), "dev-1")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, 450000.0, units[0].Price)
}

func TestAPI_PublishUnknownList(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	rec := postJSON(t, router, "/api/publish", map[string]string{"price_list_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestAPI_PublishMissingID(t *testing.T) {
	router := newRouter(newTestEnv(t))
	rec := postJSON(t, router, "/api/publish", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_HotAuto(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	require.NoError(t, env.Store.UpsertUnit(context.Background(), model.Unit{
		ID: "u-101", DevID: "dev-1", UnitNumber: "101",
		Beds: 1, SizeSqft: 540, Price: 450000,
		Status: model.UnitStatusAvailable, Floor: 12, ViewRiver: true,
		UpdatedAt: time.Now(),
	}))
	router := newRouter(env)

	rec := postJSON(t, router, "/api/hot-auto", map[string]string{"dev_id": "dev-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var h model.HottestUnit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "u-101", h.UnitID)
	assert.False(t, h.ManualOverride)
}

func TestAPI_HotAuto_NoEligibleUnits(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	router := newRouter(env)

	rec := postJSON(t, router, "/api/hot-auto", map[string]string{"dev_id": "dev-1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_HotOverride(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	require.NoError(t, env.Store.UpsertUnit(context.Background(), model.Unit{
		ID: "u-101", DevID: "dev-1", UnitNumber: "101",
		Beds: 1, SizeSqft: 540, Price: 450000, Status: model.UnitStatusAvailable,
	}))
	router := newRouter(env)

	rec := postJSON(t, router, "/api/hot-override", map[string]string{
		"dev_id": "dev-1", "unit_id": "u-101", "note": "marketing pick",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var h model.HottestUnit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.True(t, h.ManualOverride)
	assert.Equal(t, 100.0, h.Score)
}

func TestAPI_ValidateUnits(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	require.NoError(t, env.Store.UpsertUnit(context.Background(), model.Unit{
		ID: "u-101", DevID: "dev-1", UnitNumber: "101",
		Beds: 1, SizeSqft: 0, Price: 450000, Status: model.UnitStatusAvailable,
	}))
	router := newRouter(env)

	rec := postJSON(t, router, "/api/validate-units", map[string]string{"dev_id": "dev-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary struct {
		Detected int `json:"anomalies_detected"`
		Critical int `json:"critical"`
		Warnings int `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Detected)
	assert.Equal(t, 1, summary.Critical)
}

func TestAPI_GetDevelopment(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	router := newRouter(env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/developments/dev-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var dev model.Development
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dev))
	assert.Equal(t, "Riverside Quarter", dev.Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/developments/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ChangeLog(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	require.NoError(t, env.Store.AppendChangeLog(context.Background(), model.ChangeLogEntry{
		DevID:      "dev-1",
		ChangeType: model.ChangePublish,
		ChangedAt:  time.Now().UTC(),
	}))
	router := newRouter(env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/developments/dev-1/changelog?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []model.ChangeLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, model.ChangePublish, entries[0].ChangeType)
}

func TestAPI_UpsertDevelopment(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	rec := postJSON(t, router, "/api/developments", map[string]string{
		"id": "dev-9", "name": "Nine Elms Point", "postcode": "SW8 5BN",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dev, err := env.Store.GetDevelopment(context.Background(), "dev-9")
	require.NoError(t, err)
	assert.Equal(t, "Nine Elms Point", dev.Name)

	rec = postJSON(t, router, "/api/developments", map[string]string{"name": "No ID"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetHottest(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	router := newRouter(env)

	// Nothing scored yet.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/developments/dev-1/hottest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, env.Store.UpsertHottestUnit(context.Background(), model.HottestUnit{
		DevID: "dev-1", UnitID: "u-101", UnitNumber: "101", Score: 42, Reason: "Great value.",
	}))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/developments/dev-1/hottest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var h model.HottestUnit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "u-101", h.UnitID)
}

func TestAPI_ListPriceLists(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	router := newRouter(env)

	csvPath := filepath.Join(t.TempDir(), "list.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"Unit,Beds,Size (sqft),Price,Status\nA-101,1,540,450000,Available\n"), 0o644))
	rec := postJSON(t, router, "/api/ingest", map[string]string{
		"dev_id": "dev-1", "file_path": csvPath,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/developments/dev-1/price-lists", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var lists []model.PriceList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lists))
	require.Len(t, lists, 1)
	assert.Equal(t, "dev-1", lists[0].DevID)
	assert.False(t, lists[0].IsActive)
}

func TestAPI_AnomaliesListAndResolve(t *testing.T) {
	env := newTestEnv(t)
	seedDevelopment(t, env)
	require.NoError(t, env.Store.UpsertUnit(context.Background(), model.Unit{
		ID: "u-101", DevID: "dev-1", UnitNumber: "101",
		Beds: 1, SizeSqft: 0, Price: 450000, Status: model.UnitStatusAvailable,
	}))
	router := newRouter(env)

	rec := postJSON(t, router, "/api/validate-units", map[string]string{"dev_id": "dev-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/developments/dev-1/anomalies?unresolved=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var anomalies []model.UnitAnomaly
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &anomalies))
	require.Len(t, anomalies, 1)
	assert.Equal(t, model.AnomalyMissingData, anomalies[0].Type)

	rec = postJSON(t, router, "/api/anomalies/"+anomalies[0].ID+"/resolve", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/developments/dev-1/anomalies?unresolved=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAPI_ResolveUnknownAnomaly(t *testing.T) {
	router := newRouter(newTestEnv(t))
	rec := postJSON(t, router, "/api/anomalies/nope/resolve", map[string]string{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_IngestBadBody(t *testing.T) {
	router := newRouter(newTestEnv(t))
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
