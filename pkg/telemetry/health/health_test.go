package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
	}{
		{name: "no checks", checks: nil, wantStatus: "ready"},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"store": PingCheck(fakePinger{}),
				"rules": LastErrorCheck(func() string { return "" }),
			},
			wantStatus: "ready",
		},
		{
			name: "one unhealthy",
			checks: map[string]CheckFunc{
				"store": PingCheck(fakePinger{err: errors.New("closed")}),
				"rules": LastErrorCheck(func() string { return "" }),
			},
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}

			status := c.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestCheckTimeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	status := c.CheckReadiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != "unhealthy" || result.Message != ErrCheckTimeout.Error() {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRegisterUnregister(t *testing.T) {
	c := New(0)
	c.RegisterCheck("b", PingCheck(fakePinger{}))
	c.RegisterCheck("a", PingCheck(fakePinger{}))

	if got := strings.Join(c.ListChecks(), ","); got != "a,b" {
		t.Errorf("ListChecks() = %s", got)
	}

	c.UnregisterCheck("a")
	if got := strings.Join(c.ListChecks(), ","); got != "b" {
		t.Errorf("ListChecks() after unregister = %s", got)
	}
}

func TestMinCountCheck(t *testing.T) {
	n := 0
	check := MinCountCheck("points", 1, func() int { return n })

	if err := check(context.Background()); err == nil {
		t.Error("expected error with no points")
	}
	n = 2
	if err := check(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLivenessHandler(t *testing.T) {
	c := New(0)
	c.RegisterCheck("broken", PingCheck(fakePinger{err: errors.New("down")}))

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("liveness should ignore readiness checks, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "ok" {
		t.Errorf("status = %q", status.Status)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		pingErr  error
		wantCode int
	}{
		{name: "ready", method: http.MethodGet, wantCode: http.StatusOK},
		{name: "degraded", method: http.MethodGet, pingErr: errors.New("down"), wantCode: http.StatusServiceUnavailable},
		{name: "head", method: http.MethodHead, wantCode: http.StatusOK},
		{name: "post rejected", method: http.MethodPost, wantCode: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(0)
			c.RegisterCheck("store", PingCheck(fakePinger{err: tt.pingErr}))

			rec := httptest.NewRecorder()
			c.ReadinessHandler()(rec, httptest.NewRequest(tt.method, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD response should have no body")
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "abc", "today")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc" || info.GoVersion == "" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestRateLimitedHandler(t *testing.T) {
	handler := RateLimitedHandler(New(0).LivenessHandler(), 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("burst should be admitted: %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request should be limited: %v", codes)
	}
}
