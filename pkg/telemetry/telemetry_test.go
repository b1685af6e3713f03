package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"mercator-hq/tollgate/pkg/config"
)

func TestNew(t *testing.T) {
	cfg := config.Default()
	var buf bytes.Buffer

	tel, err := New(&cfg.Telemetry, BuildInfo{Version: "1.0.0"}, &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	if tel.Tracer.Enabled() {
		t.Error("tracing should be disabled by default")
	}
	if tel.Metrics.TPS() == nil {
		t.Error("metrics should be enabled by default")
	}

	tel.Logger.Info("started")
	if !strings.Contains(buf.String(), `"msg":"started"`) {
		t.Errorf("expected JSON log output, got %q", buf.String())
	}
}

func TestNew_InvalidLogging(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.Logging.Level = "loud"

	if _, err := New(&cfg.Telemetry, BuildInfo{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for invalid log level")
	}
}
