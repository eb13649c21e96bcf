package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leafsii/reserve-bootstrap/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	snap pipeline.Snapshot
	ok   bool
}

func (f fakeSource) Progress() (pipeline.Snapshot, bool) { return f.snap, f.ok }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func running() fakeSource {
	return fakeSource{ok: true, snap: pipeline.Snapshot{
		RunID:     "run-1",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Stages: map[pipeline.Stage]pipeline.Outcome{
			pipeline.StageAccessControl: pipeline.OutcomeApplied,
			pipeline.StageRisk:          pipeline.OutcomeFailed,
		},
		Steps: []pipeline.StepResult{
			{Stage: pipeline.StageAccessControl, Step: "add_pool_admin", Outcome: pipeline.OutcomeApplied},
			{Stage: pipeline.StageRisk, Symbol: "WETH", Step: "set_reserve_factor", Outcome: pipeline.OutcomeFailed, Error: "rejected"},
		},
	}}
}

func TestHealthz(t *testing.T) {
	rec := get(t, New(fakeSource{}, nil, zap.NewNop().Sugar()).Routes(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStatusWithoutRun(t *testing.T) {
	rec := get(t, New(fakeSource{}, nil, zap.NewNop().Sugar()).Routes(), "/status")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NO_RUN", body.Code)
}

func TestStatusServesSnapshot(t *testing.T) {
	rec := get(t, New(running(), nil, zap.NewNop().Sugar()).Routes(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap pipeline.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, "run-1", snap.RunID)
	assert.Nil(t, snap.FinishedAt)
	assert.Equal(t, pipeline.OutcomeFailed, snap.Stages[pipeline.StageRisk])
	assert.Len(t, snap.Steps, 2)
}

func TestStatusFailedSteps(t *testing.T) {
	rec := get(t, New(running(), nil, zap.NewNop().Sugar()).Routes(), "/status/failed")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID  string                `json:"run_id"`
		Failed []pipeline.StepResult `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "run-1", body.RunID)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, "WETH", body.Failed[0].Symbol)
	assert.Equal(t, "set_reserve_factor", body.Failed[0].Step)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("rb_tx_total 1\n"))
	})
	s := New(running(), metrics, zap.NewNop().Sugar())
	rec := get(t, s.Routes(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rb_tx_total")

	rec = get(t, New(running(), nil, zap.NewNop().Sugar()).Routes(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
