package e2ee

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/absfs/e2ee"

// Operation names recorded on metrics
const (
	opGenerate      = "generate"
	opLoad          = "load"
	opUpgrade       = "upgrade"
	opEncryptString = "encrypt_string"
	opDecryptString = "decrypt_string"
	opEncryptStream = "encrypt_stream"
	opDecryptStream = "decrypt_stream"
	opEncryptFile   = "encrypt_file"
	opDecryptFile   = "decrypt_file"
)

// serviceMetrics records operation counts and durations
type serviceMetrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

// newServiceMetrics creates the instruments on provider, or on the global
// provider when provider is nil
func newServiceMetrics(provider metric.MeterProvider) (*serviceMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	operations, err := meter.Int64Counter(
		"e2ee.operations",
		metric.WithDescription("Number of encryption operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"e2ee.operation.duration",
		metric.WithDescription("Duration of encryption operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &serviceMetrics{operations: operations, duration: duration}, nil
}

// record counts one operation. The outcome is "success" when err is nil
// and "error" otherwise.
func (m *serviceMetrics) record(ctx context.Context, operation string, method Method, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("method", method.String()),
		attribute.String("outcome", outcome),
	)
	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
