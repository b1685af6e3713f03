package tps

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestManagerRegister(t *testing.T) {
	m := NewManager()

	first := NewMonitorPoint("configPublish")
	if err := m.RegisterTpsControlPoint(first); err != nil {
		t.Fatalf("RegisterTpsControlPoint() error = %v", err)
	}

	second := NewMonitorPoint("configPublish")
	err := m.RegisterTpsControlPoint(second)
	if !errors.Is(err, ErrPointExists) {
		t.Fatalf("duplicate registration error = %v, want ErrPointExists", err)
	}

	got, ok := m.Point("configPublish")
	if !ok || got != first {
		t.Error("first registration should win")
	}

	if err := m.RegisterTpsControlPoint(nil); !errors.Is(err, ErrInvalidPoint) {
		t.Errorf("nil point error = %v, want ErrInvalidPoint", err)
	}
	if err := m.RegisterTpsControlPoint(NewMonitorPoint("")); !errors.Is(err, ErrInvalidPoint) {
		t.Errorf("unnamed point error = %v, want ErrInvalidPoint", err)
	}
}

func TestManagerNewPoint(t *testing.T) {
	m := NewManager()
	a := m.NewPoint("a")
	if again := m.NewPoint("a"); again != a {
		t.Error("NewPoint should return the existing point")
	}
	m.NewPoint("c")
	m.NewPoint("b")

	got := strings.Join(m.Points(), ",")
	if got != "a,b,c" {
		t.Errorf("Points() = %s, want a,b,c", got)
	}
}

func TestManagerApplyTps(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(WithClock(clock.Now))
	m.NewPoint("publish")

	if err := m.ApplyRule("publish", NewControlRule().SetPointRule(MustRule(2, time.Second, "SUM", "intercept"))); err != nil {
		t.Fatalf("ApplyRule() error = %v", err)
	}

	if !m.ApplyTps("publish", "c", nil) || !m.ApplyTps("publish", "c", nil) {
		t.Fatal("first two requests should be admitted")
	}
	if m.ApplyTps("publish", "c", nil) {
		t.Error("third request should be rejected")
	}

	clock.Advance(time.Second)
	if !m.ApplyTps("publish", "c", nil) {
		t.Error("manager points should share the manager clock")
	}
}

func TestManagerApplyRuleUnknown(t *testing.T) {
	m := NewManager()
	err := m.ApplyRule("missing", NewControlRule())
	if !errors.Is(err, ErrPointNotFound) {
		t.Errorf("ApplyRule() error = %v, want ErrPointNotFound", err)
	}
}

func TestManagerUnknownPoint(t *testing.T) {
	t.Run("fail open", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		m := NewManager(WithLogger(logger), WithWarnInterval(time.Hour))

		for i := 0; i < 10; i++ {
			if !m.ApplyTps("missing", "c", nil) {
				t.Fatal("unknown point should be admitted by default")
			}
		}
		if n := strings.Count(buf.String(), "unregistered point"); n != 1 {
			t.Errorf("warning logged %d times, want 1", n)
		}
	})

	t.Run("fail closed", func(t *testing.T) {
		m := NewManager(WithUnknownPointPolicy(FailClosed))
		if m.ApplyTps("missing", "c", nil) {
			t.Error("unknown point should be rejected under fail-closed")
		}
		err := m.Check(context.Background(), "missing", "c", nil)
		if !errors.Is(err, ErrThrottled) {
			t.Errorf("Check() error = %v, want ErrThrottled", err)
		}
	})
}

func TestManagerCheck(t *testing.T) {
	m := NewManager(WithClock(newFakeClock().Now))
	m.NewPoint("publish")
	if err := m.ApplyRule("publish", NewControlRule().
		SetMonitorKeyRule("content:*", MustRule(1, time.Second, "EACH", "intercept"))); err != nil {
		t.Fatalf("ApplyRule() error = %v", err)
	}

	ctx := context.Background()
	keys := contentKeys("data-1")
	if err := m.Check(ctx, "publish", "c", keys); err != nil {
		t.Fatalf("first Check() error = %v", err)
	}

	err := m.Check(ctx, "publish", "c", keys)
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("second Check() error = %v, want ErrThrottled", err)
	}
	var terr *ThrottledError
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T, want *ThrottledError", err)
	}
	if terr.Point != "publish" || terr.Pattern != "content:*" || terr.Limit != 1 {
		t.Errorf("ThrottledError = %+v", terr)
	}
	if !strings.Contains(terr.Error(), "content:*") {
		t.Errorf("Error() = %q", terr.Error())
	}
}

func TestManagerSweep(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(WithClock(clock.Now), WithIdlePeriods(1))
	for _, name := range []string{"a", "b"} {
		m.NewPoint(name)
		if err := m.ApplyRule(name, NewControlRule().
			SetMonitorKeyRule("connectionId:*", MustRule(10, time.Second, "EACH", "intercept"))); err != nil {
			t.Fatalf("ApplyRule() error = %v", err)
		}
		m.ApplyTps(name, "c1", []MonitorKey{ConnectionKey("c1")})
		m.ApplyTps(name, "c2", []MonitorKey{ConnectionKey("c2")})
	}

	clock.Advance(time.Second)
	if n := m.Sweep(clock.Now()); n != 4 {
		t.Errorf("Sweep() = %d, want 4", n)
	}
}
