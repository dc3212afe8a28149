package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

var (
	promReaderFactory = prometheusComponents
	otlpReaderFactory = buildOTLPReader
	instrumentFactory = newOtelInstruments
)

// TelemetryConfig controls how metrics are exported.
type TelemetryConfig struct {
	Enabled      bool
	Port         string
	ServiceName  string
	OtlpEndpoint string
	OtlpInsecure bool
}

// Setup configures OpenTelemetry metrics with a Prometheus exporter and
// optional OTLP exporter. It returns a Recorder, the Prometheus HTTP
// handler, and a shutdown function.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Recorder, http.Handler, func(context.Context) error, error) {
	if !cfg.Enabled {
		return NewRecorder(), nil, func(context.Context) error { return nil }, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "disc-golf-tracker"
	}

	promReader, promHandler, err := promReaderFactory()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []sdkmetric.Option{sdkmetric.WithReader(promReader)}

	if cfg.OtlpEndpoint != "" {
		otlpReader, err := otlpReaderFactory(ctx, cfg.OtlpEndpoint, cfg.OtlpInsecure)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, sdkmetric.WithReader(otlpReader))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	opts = append(opts, sdkmetric.WithResource(res))

	provider := sdkmetric.NewMeterProvider(opts...)

	otelInst, err := instrumentFactory(provider)
	if err != nil {
		return nil, nil, nil, err
	}

	rec := newRecorder(otelInst)
	shutdown := func(c context.Context) error {
		return provider.Shutdown(c)
	}

	return rec, promHandler, shutdown, nil
}

func buildOTLPReader(ctx context.Context, endpoint string, insecure bool) (sdkmetric.Reader, error) {
	otlpOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		otlpOpts = append(otlpOpts, otlpmetrichttp.WithInsecure())
	}
	otlpExp, err := otlpmetrichttp.New(ctx, otlpOpts...)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(otlpExp, sdkmetric.WithInterval(15*time.Second)), nil
}

func prometheusComponents() (sdkmetric.Reader, http.Handler, error) {
	reg := prometheus.NewRegistry()
	promExp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	return promExp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

type otelInstruments struct {
	ctx   context.Context
	meter metric.Meter

	requests         metric.Int64Counter
	requestLatencyMs metric.Float64Histogram

	relayInbound     metric.Int64Counter
	relayInboundErr  metric.Int64Counter
	relayOutbound    metric.Int64Counter
	relayOutboundErr metric.Int64Counter
	relayDropped     metric.Int64Counter
	applyLatencyMs   metric.Float64Histogram

	merges         metric.Int64Counter
	mergeErrors    metric.Int64Counter
	mergeLatencyMs metric.Float64Histogram

	scoreMutations metric.Int64Counter
}

func newOtelInstruments(provider metric.MeterProvider) (*otelInstruments, error) {
	meter := provider.Meter("disc-golf-tracker")
	ctx := context.Background()

	requests, err := meter.Int64Counter("http_requests_total")
	if err != nil {
		return nil, err
	}
	requestLatency, err := meter.Float64Histogram("http_request_duration_ms")
	if err != nil {
		return nil, err
	}

	relayInbound, err := meter.Int64Counter("relay_inbound_total")
	if err != nil {
		return nil, err
	}
	relayInboundErr, err := meter.Int64Counter("relay_inbound_errors_total")
	if err != nil {
		return nil, err
	}
	relayOutbound, err := meter.Int64Counter("relay_outbound_total")
	if err != nil {
		return nil, err
	}
	relayOutboundErr, err := meter.Int64Counter("relay_outbound_errors_total")
	if err != nil {
		return nil, err
	}
	relayDropped, err := meter.Int64Counter("relay_dropped_total")
	if err != nil {
		return nil, err
	}
	applyLatency, err := meter.Float64Histogram("relay_apply_duration_ms")
	if err != nil {
		return nil, err
	}

	merges, err := meter.Int64Counter("merge_runs_total")
	if err != nil {
		return nil, err
	}
	mergeErrors, err := meter.Int64Counter("merge_errors_total")
	if err != nil {
		return nil, err
	}
	mergeLatency, err := meter.Float64Histogram("merge_duration_ms")
	if err != nil {
		return nil, err
	}

	scoreMutations, err := meter.Int64Counter("score_mutations_total")
	if err != nil {
		return nil, err
	}

	return &otelInstruments{
		ctx:              ctx,
		meter:            meter,
		requests:         requests,
		requestLatencyMs: requestLatency,
		relayInbound:     relayInbound,
		relayInboundErr:  relayInboundErr,
		relayOutbound:    relayOutbound,
		relayOutboundErr: relayOutboundErr,
		relayDropped:     relayDropped,
		applyLatencyMs:   applyLatency,
		merges:           merges,
		mergeErrors:      mergeErrors,
		mergeLatencyMs:   mergeLatency,
		scoreMutations:   scoreMutations,
	}, nil
}

func (o *otelInstruments) recordHTTPRequest(method, path string, status int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrMethod, method),
		attribute.String(AttrPath, path),
		attribute.Int(AttrStatus, status),
	}
	o.recordCounter(o.requests, 1, attrs...)
	o.recordHistogram(o.requestLatencyMs, float64(duration.Milliseconds()), attrs...)
}

func (o *otelInstruments) recordRelayInbound(duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.recordCounter(o.relayInbound, 1)
	o.recordHistogram(o.applyLatencyMs, float64(duration.Milliseconds()))
	if err != nil {
		o.recordCounter(o.relayInboundErr, 1)
	}
}

func (o *otelInstruments) recordRelayOutbound(duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.recordCounter(o.relayOutbound, 1)
	if err != nil {
		o.recordCounter(o.relayOutboundErr, 1)
	}
}

func (o *otelInstruments) recordRelayDropped(reason string) {
	if o == nil {
		return
	}
	o.recordCounter(o.relayDropped, 1, attribute.String(AttrReason, reason))
}

func (o *otelInstruments) recordMerge(created bool, duration time.Duration, err error) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.Bool(AttrCreated, created)}
	o.recordCounter(o.merges, 1, attrs...)
	o.recordHistogram(o.mergeLatencyMs, float64(duration.Milliseconds()), attrs...)
	if err != nil {
		o.recordCounter(o.mergeErrors, 1)
	}
}

func (o *otelInstruments) recordScoreMutation(op string) {
	if o == nil {
		return
	}
	o.recordCounter(o.scoreMutations, 1, attribute.String(AttrOp, op))
}

func (o *otelInstruments) recordCounter(counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if o == nil {
		return
	}
	counter.Add(o.ctx, value, metric.WithAttributes(attrs...))
}

func (o *otelInstruments) recordHistogram(hist metric.Float64Histogram, value float64, attrs ...attribute.KeyValue) {
	if o == nil {
		return
	}
	hist.Record(o.ctx, value, metric.WithAttributes(attrs...))
}
