package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventhive/internal/config"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TracingConfig
	}{
		{name: "sample rate", cfg: config.TracingConfig{Enabled: true, Exporter: "none", SampleRate: 2}},
		{name: "exporter", cfg: config.TracingConfig{Enabled: true, Exporter: "zipkin", SampleRate: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InitTracing(context.Background(), tt.cfg, "test")
			assert.Error(t, err)
		})
	}
}

func TestInitTracing_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	orig := stderr
	stderr = &buf
	t.Cleanup(func() { stderr = orig })

	ctx := context.Background()
	shutdown, err := InitTracing(ctx, config.TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "eventhive-test",
		SampleRate:  1,
	}, "test")
	require.NoError(t, err)

	_, span := GetTracer("telemetry-test").Start(ctx, "unit-span")
	span.End()
	require.NoError(t, shutdown(ctx))

	assert.Contains(t, buf.String(), "unit-span")
}
