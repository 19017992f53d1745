package e2ee

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// operationCounts collects e2ee.operations keyed by "operation/method/outcome"
func operationCounts(t *testing.T, reader sdkmetric.Reader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "e2ee.operations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				method, _ := dp.Attributes.Value(attribute.Key("method"))
				outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
				counts[op.AsString()+"/"+method.AsString()+"/"+outcome.AsString()] += dp.Value
			}
		}
	}
	return counts
}

func TestServiceMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := newServiceMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.record(ctx, opEncryptString, MethodCurrent, time.Now(), nil)
	m.record(ctx, opEncryptString, MethodCurrent, time.Now(), nil)
	m.record(ctx, opDecryptString, MethodLegacyV1, time.Now(), errors.New("boom"))

	counts := operationCounts(t, reader)
	assert.Equal(t, int64(2), counts["encrypt_string/current/success"])
	assert.Equal(t, int64(1), counts["decrypt_string/legacy-v1/error"])
}

func TestServiceMetrics_GlobalProvider(t *testing.T) {
	m, err := newServiceMetrics(nil)
	require.NoError(t, err)
	m.record(context.Background(), opLoad, MethodCurrent, time.Now(), nil)
}

func TestService_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	svc := newTestService(t, Config{MeterProvider: provider})
	loadTestKey(t, svc, MethodLegacyV1)

	cipherText, err := svc.EncryptString("metered", WithMethod(MethodCurrentChaCha))
	require.NoError(t, err)
	_, err = svc.DecryptString(cipherText)
	require.NoError(t, err)
	_, err = svc.DecryptString("garbage")
	require.Error(t, err)

	counts := operationCounts(t, reader)
	assert.Equal(t, int64(1), counts["generate/legacy-v1/success"])
	assert.Equal(t, int64(1), counts["load/legacy-v1/success"])
	assert.Equal(t, int64(1), counts["encrypt_string/current-chacha/success"])
	assert.Equal(t, int64(1), counts["decrypt_string/current-chacha/success"])

	var failed int64
	for key, n := range counts {
		if strings.HasSuffix(key, "/error") {
			failed += n
		}
	}
	assert.Equal(t, int64(1), failed)
}
