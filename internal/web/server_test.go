package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewline/crewline/internal/config"
	"github.com/crewline/crewline/internal/db"
	"github.com/crewline/crewline/internal/feature"
)

func newTestServer(t *testing.T) (*Server, *feature.Store) {
	t.Helper()
	handle, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	features := feature.NewStore(handle)
	return NewServer(features, config.NewStore(handle)), features
}

func seedFeature(t *testing.T, features *feature.Store, f feature.Feature) {
	t.Helper()
	_, err := features.Create(context.Background(), f)
	require.NoError(t, err)
}

func TestFeaturesEndpointFilters(t *testing.T) {
	t.Parallel()
	server, features := newTestServer(t)
	seedFeature(t, features, feature.Feature{ID: "FEAT-001", Status: feature.StatusPending})
	seedFeature(t, features, feature.Feature{ID: "FEAT-002", Status: feature.StatusComplete})

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/features?status=pending")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []feature.Feature
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	require.Equal(t, "FEAT-001", got[0].ID)
}

func TestFeaturesEndpointEmptyStoreIsArray(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/features")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []feature.Feature
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestFeatureEndpointNotFound(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/features/FEAT-404")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPatchFeatureUpdatesAndBroadcasts(t *testing.T) {
	t.Parallel()
	server, features := newTestServer(t)
	seedFeature(t, features, feature.Feature{ID: "FEAT-001", Status: feature.StatusPending})

	events := server.hub.subscribe()
	defer server.hub.unsubscribe(events)

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	body := strings.NewReader(`{"status":"in-dev","passes":true}`)
	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/features/FEAT-001", body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := features.Get(context.Background(), "FEAT-001")
	require.NoError(t, err)
	require.Equal(t, feature.StatusInDev, got.Status)
	require.True(t, got.Passes)

	select {
	case ev := <-events:
		require.Equal(t, "feature-updated", ev.name)
	default:
		t.Fatal("no broadcast after PATCH")
	}
}

func TestPatchFeatureNotFound(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/features/FEAT-404", strings.NewReader(`{"notes":"x"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPatchFeatureRejectsInvalidStatus(t *testing.T) {
	t.Parallel()
	server, features := newTestServer(t)
	seedFeature(t, features, feature.Feature{ID: "FEAT-001"})

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/features/FEAT-001", strings.NewReader(`{"status":"done"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusEndpointCounts(t *testing.T) {
	t.Parallel()
	server, features := newTestServer(t)
	seedFeature(t, features, feature.Feature{ID: "FEAT-001", Status: feature.StatusComplete})
	seedFeature(t, features, feature.Feature{ID: "FEAT-002", Status: feature.StatusPending})
	seedFeature(t, features, feature.Feature{ID: "FEAT-003", Status: feature.StatusPending})

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got struct {
		Total    int            `json:"total"`
		Counts   map[string]int `json:"counts"`
		Complete int            `json:"complete"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, 3, got.Total)
	require.Equal(t, 1, got.Complete)
	require.Equal(t, 2, got.Counts["pending"])
}

func TestChangesEndpointGroups(t *testing.T) {
	t.Parallel()
	server, features := newTestServer(t)
	seedFeature(t, features, feature.Feature{
		ID: "FEAT-001", Status: feature.StatusComplete,
		OpenSpecChangeID: "add-login", OpenSpecTaskGroup: 1,
	})
	seedFeature(t, features, feature.Feature{
		ID: "FEAT-002", Status: feature.StatusPending,
		OpenSpecChangeID: "add-login", OpenSpecTaskGroup: 2,
	})
	seedFeature(t, features, feature.Feature{ID: "FEAT-003", Status: feature.StatusPending})

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/openspec/changes")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []changeSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	require.Equal(t, "add-login", got[0].Change)
	require.Equal(t, 2, got[0].Total)
	require.Equal(t, 1, got[0].Complete)
}

func TestConfigEndpoint(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "orchestrator", got["execution_mode"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHubDropsSlowClients(t *testing.T) {
	t.Parallel()
	h := newHub()
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Fill the buffer; further broadcasts must not block.
	for i := 0; i < 64; i++ {
		h.broadcast("features", []byte("{}"))
	}
}
