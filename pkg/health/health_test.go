package health

import (
	"context"
	"errors"
	"testing"
)

type fakeChecker struct{ err error }

func (f *fakeChecker) Health(ctx context.Context) error { return f.err }

func TestCheck_AllHealthy(t *testing.T) {
	a := NewAggregator()
	a.RegisterChecker("speech_recognition", &fakeChecker{})
	a.RegisterChecker("llm", &fakeChecker{})
	a.Register("sessions", func(ctx context.Context) Component {
		return Component{Status: StatusHealthy, Stats: map[string]any{"active": 3}}
	})

	report := a.Check(context.Background())

	if report.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", report.Status)
	}
	if len(report.Components) != 3 {
		t.Fatalf("expected 3 components, got %d", len(report.Components))
	}
	if report.Components["sessions"].Stats["active"] != 3 {
		t.Error("component stats not carried through")
	}
	if report.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestCheck_OneUnhealthyComponent(t *testing.T) {
	a := NewAggregator()
	a.RegisterChecker("llm", &fakeChecker{})
	a.RegisterChecker("voice", &fakeChecker{err: errors.New("api unreachable")})

	report := a.Check(context.Background())

	if report.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	voice := report.Components["voice"]
	if voice.Status != StatusUnhealthy || voice.Error != "api unreachable" {
		t.Errorf("unexpected voice component: %+v", voice)
	}
	if report.Components["llm"].Status != StatusHealthy {
		t.Error("healthy component misreported")
	}
}

func TestCheck_DegradedDominatesHealthy(t *testing.T) {
	a := NewAggregator()
	a.Register("a", func(ctx context.Context) Component {
		return Component{Status: StatusHealthy}
	})
	a.Register("b", func(ctx context.Context) Component {
		return Component{Status: StatusDegraded}
	})

	if report := a.Check(context.Background()); report.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
}

func TestCheck_NilCheckerNotInitialized(t *testing.T) {
	a := NewAggregator()
	a.RegisterChecker("llm", nil)

	report := a.Check(context.Background())
	if report.Components["llm"].Status != StatusNotInitialized {
		t.Errorf("expected not_initialized, got %s", report.Components["llm"].Status)
	}
	if report.Status != StatusDegraded {
		t.Errorf("uninitialized component should degrade the report, got %s", report.Status)
	}
}

// The overall field only ever takes two values; the stronger per-component
// states stay in the component detail.
func TestCheck_OverallIsHealthyOrDegradedOnly(t *testing.T) {
	a := NewAggregator()
	a.RegisterChecker("failing", &fakeChecker{err: errors.New("down")})
	a.RegisterChecker("uninitialized", nil)

	report := a.Check(context.Background())

	if report.Status != StatusDegraded {
		t.Fatalf("expected overall degraded, got %s", report.Status)
	}
	if report.Components["failing"].Status != StatusUnhealthy {
		t.Errorf("failing component should stay unhealthy in detail, got %s",
			report.Components["failing"].Status)
	}
	if report.Components["uninitialized"].Status != StatusNotInitialized {
		t.Errorf("uninitialized component should stay not_initialized in detail, got %s",
			report.Components["uninitialized"].Status)
	}
}

func TestCheck_PanicIsContained(t *testing.T) {
	a := NewAggregator()
	a.Register("flaky", func(ctx context.Context) Component {
		panic("boom")
	})

	report := a.Check(context.Background())
	if report.Components["flaky"].Status != StatusUnhealthy {
		t.Error("panicking check should report unhealthy")
	}
	if report.Status != StatusDegraded {
		t.Errorf("report should be degraded after a panicking check, got %s", report.Status)
	}
}

func TestCheck_Empty(t *testing.T) {
	a := NewAggregator()
	if report := a.Check(context.Background()); report.Status != StatusHealthy {
		t.Errorf("empty aggregator should report healthy, got %s", report.Status)
	}
}

func TestRegister_Replaces(t *testing.T) {
	a := NewAggregator()
	a.Register("x", func(ctx context.Context) Component {
		return Component{Status: StatusUnhealthy}
	})
	a.Register("x", func(ctx context.Context) Component {
		return Component{Status: StatusHealthy}
	})

	if report := a.Check(context.Background()); report.Status != StatusHealthy {
		t.Errorf("later registration should win, got %s", report.Status)
	}
}
