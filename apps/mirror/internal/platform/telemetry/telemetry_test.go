package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/treemirror/apps/mirror/internal/platform/telemetry"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := telemetry.New(context.Background(), false, "run")

	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestServiceName(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	assert.Equal(t, "treemirror", telemetry.ServiceName())

	t.Setenv("OTEL_SERVICE_NAME", "mirror-staging")
	assert.Equal(t, "mirror-staging", telemetry.ServiceName())
}

func TestResource_CarriesServiceAndComponent(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")

	res, err := telemetry.Resource(context.Background(), "worker")
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "treemirror", attrs["service.name"])
	assert.Equal(t, "worker", attrs[string(telemetry.ComponentKey)])
}

func TestShutdown_ZeroValue(t *testing.T) {
	var tel telemetry.Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
}
