package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	Transactions metric.Int64Counter
	TxDuration   metric.Float64Histogram
	ViewCalls    metric.Int64Counter
	StepOutcomes metric.Int64Counter
}

// Setup registers the instruments with the default Prometheus registry
// and installs the global meter provider.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := newMetrics(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.Handler(), nil
}

// New is like Setup but exports to reg and leaves global state alone.
func New(serviceName string, reg *promclient.Registry) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	m, err := newMetrics(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Transactions, err = meter.Int64Counter(
		"rb_tx_total",
		metric.WithDescription("Total number of submitted transactions"),
	)
	if err != nil {
		return nil, err
	}

	m.TxDuration, err = meter.Float64Histogram(
		"rb_tx_duration_seconds",
		metric.WithDescription("Transaction round trip in seconds, until committed or rejected"),
	)
	if err != nil {
		return nil, err
	}

	m.ViewCalls, err = meter.Int64Counter(
		"rb_view_calls_total",
		metric.WithDescription("Total number of read-only view calls"),
	)
	if err != nil {
		return nil, err
	}

	m.StepOutcomes, err = meter.Int64Counter(
		"rb_step_outcomes_total",
		metric.WithDescription("Bootstrap steps by stage and outcome"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) RecordTransaction(ctx context.Context, function, profile, status string, d time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("function", function),
		attribute.String("profile", profile),
		attribute.String("status", status),
	)
	m.Transactions.Add(ctx, 1, labels)
	m.TxDuration.Record(ctx, d.Seconds(), labels)
}

func (m *Metrics) RecordView(ctx context.Context, function, status string, _ time.Duration) {
	m.ViewCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("function", function),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordStep(ctx context.Context, stage, outcome string) {
	m.StepOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}
