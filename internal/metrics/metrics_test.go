package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExport(t *testing.T) {
	reg := promclient.NewRegistry()
	m, handler, err := New("reserve-bootstrap-test", reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordTransaction(ctx, "pool_configurator::init_reserves", "pool", "ok", 120*time.Millisecond)
	m.RecordTransaction(ctx, "acl_manage::add_pool_admin", "acl", "transient", time.Second)
	m.RecordView(ctx, "oracle::get_asset_feed_id", "not_found", time.Millisecond)
	m.RecordStep(ctx, "risk", "applied")
	m.RecordStep(ctx, "risk", "applied")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, "rb_tx_total")
	assert.Contains(t, out, `function="pool_configurator::init_reserves"`)
	assert.Contains(t, out, `status="transient"`)
	assert.Contains(t, out, "rb_tx_duration_seconds_bucket")
	assert.Contains(t, out, "rb_view_calls_total")
	assert.Contains(t, out, `status="not_found"`)
	assert.Contains(t, out, "rb_step_outcomes_total")
	assert.Contains(t, out, `outcome="applied"`)
}
