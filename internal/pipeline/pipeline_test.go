package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/engine"
	"github.com/betrace-hq/betrace-sub002/internal/ledger"
	"github.com/betrace-hq/betrace-sub002/internal/signals"
)

func newTestPipeline(t *testing.T, workers, queueSize int) (*Pipeline, *signals.Service) {
	t.Helper()

	led := ledger.NewMemoryLedger()
	accounts := ledger.NewAccounts(led)
	if err := accounts.Bootstrap(context.Background(), "acme"); err != nil {
		t.Fatal(err)
	}

	manager := engine.NewManager()
	err := manager.Update("acme", []core.Rule{{
		ID:       "r1",
		Name:     "db access",
		Source:   `trace has span where service == "db"`,
		Enabled:  true,
		Severity: core.SeverityHigh,
	}})
	if err != nil {
		t.Fatal(err)
	}

	sigSvc := signals.NewService(led, accounts)
	return New(manager, sigSvc, workers, queueSize, engine.Options{}), sigSvc
}

func completedTrace(traceID string) core.Trace {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return core.Trace{
		TraceID:  traceID,
		TenantID: "acme",
		Spans: []core.Span{{
			TraceID:   traceID,
			SpanID:    "s1",
			Service:   "db",
			Operation: "query",
			StartTime: start,
			EndTime:   start.Add(10 * time.Millisecond),
		}},
	}
}

func waitForSignals(t *testing.T, svc *signals.Service, want int) []core.Signal {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := svc.Query("acme", signals.Filter{})
		if len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, _ := svc.Query("acme", signals.Filter{})
	t.Fatalf("signals = %d, want %d", len(got), want)
	return nil
}

func TestPipelineEvaluatesSubmittedTraces(t *testing.T) {
	p, sigSvc := newTestPipeline(t, 2, 16)
	p.Start(context.Background())
	defer p.Stop()

	if !p.Submit(completedTrace("t1")) {
		t.Fatal("submit rejected")
	}

	got := waitForSignals(t, sigSvc, 1)
	if got[0].RuleID != "r1" || got[0].TraceID != "t1" {
		t.Errorf("signal = %+v", got[0])
	}
}

func TestPipelineStopDrainsInFlight(t *testing.T) {
	p, sigSvc := newTestPipeline(t, 1, 16)
	p.Start(context.Background())

	for i := 0; i < 5; i++ {
		if !p.Submit(completedTrace("t" + string(rune('0'+i)))) {
			t.Fatalf("submit %d rejected", i)
		}
	}
	p.Stop()

	got, _ := sigSvc.Query("acme", signals.Filter{})
	if len(got) != 5 {
		t.Fatalf("signals after stop = %d, want 5", len(got))
	}

	if p.Submit(completedTrace("late")) {
		t.Error("submit accepted after stop")
	}
}

func TestPipelineDropsWhenQueueFull(t *testing.T) {
	// No workers running: the queue fills and stays full.
	p, _ := newTestPipeline(t, 1, 2)

	if !p.Submit(completedTrace("t1")) || !p.Submit(completedTrace("t2")) {
		t.Fatal("queue rejected before capacity")
	}
	if p.Submit(completedTrace("t3")) {
		t.Error("submit accepted beyond queue capacity")
	}
}

func TestPipelineSkipsTenantsWithoutRules(t *testing.T) {
	p, sigSvc := newTestPipeline(t, 1, 16)
	p.Start(context.Background())

	trace := completedTrace("t1")
	trace.TenantID = "globex"
	p.Submit(trace)
	p.Stop()

	got, _ := sigSvc.Query("globex", signals.Filter{})
	if len(got) != 0 {
		t.Fatalf("signals = %d, want 0", len(got))
	}
}
