package metrics

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ceramicnetwork/go-pulse/common/loggers"
	"github.com/ceramicnetwork/go-pulse/models"
)

func TestCount(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	metricService := newOtelMetricService(loggers.NewTestLogger(), reader)
	defer metricService.Shutdown(ctx)

	for i := 0; i < 3; i++ {
		if err := metricService.Count(ctx, models.MetricName_ReminderSent, 1); err != nil {
			t.Fatalf("Count: %v", err)
		}
	}
	if err := metricService.Distribution(ctx, models.MetricName_RosterSize, 4); err != nil {
		t.Fatalf("Distribution: %v", err)
	}

	collected := metricdata.ResourceMetrics{}
	if err := reader.Collect(ctx, &collected); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	sums := make(map[string]int64)
	found := make(map[string]bool)
	for _, scope := range collected.ScopeMetrics {
		for _, m := range scope.Metrics {
			found[m.Name] = true
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, point := range sum.DataPoints {
					sums[m.Name] += point.Value
				}
			}
		}
	}
	if sums[string(models.MetricName_ReminderSent)] != 3 {
		t.Errorf("expected 3 reminders counted, got %d", sums[string(models.MetricName_ReminderSent)])
	}
	if !found[string(models.MetricName_RosterSize)] {
		t.Errorf("expected roster size histogram to be recorded")
	}
}
