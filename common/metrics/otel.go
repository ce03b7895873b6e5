package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/ceramicnetwork/go-pulse/common"
	"github.com/ceramicnetwork/go-pulse/models"
)

const exportInterval = 60 * time.Second

var _ models.MetricService = &OtelMetricService{}

type OtelMetricService struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	logger        models.Logger
	lock          sync.Mutex
	counters      map[models.MetricName]metric.Int64Counter
	histograms    map[models.MetricName]metric.Int64Histogram
}

// NewOtelMetricService exports over OTLP/HTTP when an OTLP metrics endpoint is configured, and to stdout otherwise.
func NewOtelMetricService(ctx context.Context, logger models.Logger) (*OtelMetricService, error) {
	var exporter sdkmetric.Exporter
	var err error
	if endpoint := os.Getenv(common.Env_MetricsEndpoint); len(endpoint) > 0 {
		// The exporter reads the endpoint from the environment
		logger.Infof("metrics: exporting to %s", endpoint)
		exporter, err = otlpmetrichttp.New(ctx)
	} else {
		exporter, err = stdoutmetric.New()
	}
	if err != nil {
		return nil, fmt.Errorf("metrics: creating exporter: %w", err)
	}
	return newOtelMetricService(logger, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))), nil
}

func newOtelMetricService(logger models.Logger, reader sdkmetric.Reader) *OtelMetricService {
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", common.ServiceName))),
	)
	return &OtelMetricService{
		meterProvider: meterProvider,
		meter:         meterProvider.Meter(models.MetricsCallerName),
		logger:        logger,
		counters:      make(map[models.MetricName]metric.Int64Counter),
		histograms:    make(map[models.MetricName]metric.Int64Histogram),
	}
}

func (o *OtelMetricService) Count(ctx context.Context, name models.MetricName, val int) error {
	o.lock.Lock()
	counter, found := o.counters[name]
	if !found {
		var err error
		if counter, err = o.meter.Int64Counter(string(name)); err != nil {
			o.lock.Unlock()
			return fmt.Errorf("metrics: creating counter %s: %w", name, err)
		}
		o.counters[name] = counter
	}
	o.lock.Unlock()

	counter.Add(ctx, int64(val), metric.WithAttributes(attribute.String("caller", models.MetricsCallerName)))
	return nil
}

func (o *OtelMetricService) Distribution(ctx context.Context, name models.MetricName, val int) error {
	o.lock.Lock()
	histogram, found := o.histograms[name]
	if !found {
		var err error
		if histogram, err = o.meter.Int64Histogram(string(name)); err != nil {
			o.lock.Unlock()
			return fmt.Errorf("metrics: creating histogram %s: %w", name, err)
		}
		o.histograms[name] = histogram
	}
	o.lock.Unlock()

	histogram.Record(ctx, int64(val), metric.WithAttributes(attribute.String("caller", models.MetricsCallerName)))
	return nil
}

// Shutdown flushes pending metrics.
func (o *OtelMetricService) Shutdown(ctx context.Context) {
	if err := o.meterProvider.Shutdown(ctx); err != nil {
		o.logger.Errorf("metrics: error shutting down meter provider: %v", err)
	}
}
