package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

var evalBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func evalSpan(id, service, operation string, startOffset time.Duration, attrs map[string]any) core.Span {
	return core.Span{
		TraceID:      "t1",
		SpanID:       id,
		ParentSpanID: "root",
		Service:      service,
		Operation:    operation,
		StartTime:    evalBase.Add(startOffset),
		EndTime:      evalBase.Add(startOffset + 50*time.Millisecond),
		Attributes:   attrs,
	}
}

func evalTrace(spans ...core.Span) core.Trace {
	return core.Trace{TraceID: "t1", TenantID: "acme", Spans: spans}
}

func mustCompile(t *testing.T, id, source string) CompiledRule {
	t.Helper()
	cr, err := Compile(core.Rule{
		ID:       id,
		Name:     "rule " + id,
		Source:   source,
		Enabled:  true,
		Severity: core.SeverityMedium,
	})
	if err != nil {
		t.Fatalf("Compile(%q) = %v", source, err)
	}
	return cr
}

func TestEvaluateRuleHasSpan(t *testing.T) {
	trace := evalTrace(
		evalSpan("s1", "payments", "charge", 0, nil),
		evalSpan("s2", "ledger", "commit", 10*time.Millisecond, nil),
	)

	tests := []struct {
		name    string
		source  string
		wantIDs []string
	}{
		{"match", `trace has span where service == "payments"`, []string{"s1"}},
		{"no match", `trace has span where service == "fraud"`, nil},
		{"all spans", `trace has span where span_id != ""`, []string{"s1", "s2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := mustCompile(t, "r1", tt.source)
			match, err := EvaluateRule(context.Background(), cr, trace, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantIDs == nil {
				if match != nil {
					t.Fatalf("match = %+v, want nil", match)
				}
				return
			}
			if match == nil {
				t.Fatal("match = nil, want fire")
			}
			if got := match.SpanIDs(); !reflect.DeepEqual(got, tt.wantIDs) {
				t.Errorf("witnesses = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}

func TestEvaluateRuleCount(t *testing.T) {
	trace := evalTrace(
		evalSpan("s1", "db", "query", 0, nil),
		evalSpan("s2", "db", "query", 5*time.Millisecond, nil),
		evalSpan("s3", "api", "handle", 10*time.Millisecond, nil),
	)

	tests := []struct {
		name   string
		source string
		fires  bool
	}{
		{"greater", `count(span where service == "db") > 1`, true},
		{"greater fails", `count(span where service == "db") > 2`, false},
		{"exactly", `count(span where service == "api") == 1`, true},
		{"zero matches", `count(span where service == "fraud") == 0`, true},
		{"not equal", `count(span where service == "db") != 2`, false},
		{"at most", `count(span where service == "db") <= 2`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := mustCompile(t, "r1", tt.source)
			match, err := EvaluateRule(context.Background(), cr, trace, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if (match != nil) != tt.fires {
				t.Errorf("fired = %v, want %v", match != nil, tt.fires)
			}
		})
	}
}

func TestEvaluateRuleCountZeroFiresWithoutWitnesses(t *testing.T) {
	trace := evalTrace(evalSpan("s1", "api", "handle", 0, nil))
	cr := mustCompile(t, "r1", `count(span where service == "fraud") == 0`)
	match, err := EvaluateRule(context.Background(), cr, trace, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if match == nil {
		t.Fatal("want fire on empty count")
	}
	if len(match.Spans) != 0 {
		t.Errorf("witnesses = %v, want none", match.SpanIDs())
	}
}

func TestEvaluateRuleOrder(t *testing.T) {
	trace := evalTrace(
		evalSpan("s1", "auth", "verify", 0, nil),
		evalSpan("s2", "db", "query", 20*time.Millisecond, nil),
		evalSpan("s3", "db", "query", 30*time.Millisecond, nil),
	)

	t.Run("fires with earliest pair", func(t *testing.T) {
		cr := mustCompile(t, "r1", `span where service == "auth" before span where service == "db"`)
		match, err := EvaluateRule(context.Background(), cr, trace, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if match == nil {
			t.Fatal("want fire")
		}
		if got, want := match.SpanIDs(), []string{"s1", "s2"}; !reflect.DeepEqual(got, want) {
			t.Errorf("witnesses = %v, want %v", got, want)
		}
	})

	t.Run("no fire when order reversed", func(t *testing.T) {
		cr := mustCompile(t, "r1", `span where service == "db" before span where service == "auth"`)
		match, err := EvaluateRule(context.Background(), cr, trace, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if match != nil {
			t.Fatalf("match = %+v, want nil", match)
		}
	})

	t.Run("span does not order before itself", func(t *testing.T) {
		cr := mustCompile(t, "r1", `span where service == "auth" before span where service == "auth"`)
		match, err := EvaluateRule(context.Background(), cr, trace, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if match != nil {
			t.Fatalf("match = %+v, want nil", match)
		}
	})
}

func TestEvaluateRuleNotHoldsNoWitnesses(t *testing.T) {
	trace := evalTrace(evalSpan("s1", "db", "query", 0, map[string]any{"db.query": "SELECT 1"}))

	cr := mustCompile(t, "r1",
		`trace has span where attributes["db.query"] exists and not trace has span where attributes["audit.log"] exists`)
	match, err := EvaluateRule(context.Background(), cr, trace, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if match == nil {
		t.Fatal("want fire: query without audit log")
	}
	// Only the positive branch contributes witnesses.
	if got, want := match.SpanIDs(), []string{"s1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("witnesses = %v, want %v", got, want)
	}
}

func TestEvaluateRuleWitnessesDedupedAndSorted(t *testing.T) {
	trace := evalTrace(
		evalSpan("s2", "db", "query", 10*time.Millisecond, nil),
		evalSpan("s1", "db", "query", 0, nil),
	)

	// Both conjuncts match the same spans; witnesses must not repeat.
	cr := mustCompile(t, "r1",
		`trace has span where service == "db" and trace has span where operation == "query"`)
	match, err := EvaluateRule(context.Background(), cr, trace, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if match == nil {
		t.Fatal("want fire")
	}
	if got, want := match.SpanIDs(), []string{"s1", "s2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("witnesses = %v, want %v", got, want)
	}
}

func TestEvaluateRuleOrRunsBothBranches(t *testing.T) {
	trace := evalTrace(
		evalSpan("s1", "a", "x", 0, nil),
		evalSpan("s2", "b", "y", 10*time.Millisecond, nil),
	)

	cr := mustCompile(t, "r1",
		`trace has span where service == "a" or trace has span where service == "b"`)
	match, err := EvaluateRule(context.Background(), cr, trace, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if match == nil {
		t.Fatal("want fire")
	}
	// Witnesses from both satisfied branches, deterministically.
	if got, want := match.SpanIDs(), []string{"s1", "s2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("witnesses = %v, want %v", got, want)
	}
}

func TestEvaluateRuleDeterministic(t *testing.T) {
	trace := evalTrace(
		evalSpan("s3", "db", "query", 20*time.Millisecond, nil),
		evalSpan("s1", "db", "query", 0, nil),
		evalSpan("s2", "api", "handle", 10*time.Millisecond, nil),
	)
	cr := mustCompile(t, "r1",
		`trace has span where service == "db" or count(span where service == "api") >= 1`)

	first, err := EvaluateRule(context.Background(), cr, trace, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := EvaluateRule(context.Background(), cr, trace, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, first, again)
		}
	}
}

func TestEvaluateRuleStepBudget(t *testing.T) {
	spans := make([]core.Span, 50)
	for i := range spans {
		spans[i] = evalSpan(string(rune('a'+i%26))+"x", "db", "query", time.Duration(i)*time.Millisecond, nil)
	}
	trace := evalTrace(spans...)

	cr := mustCompile(t, "r1", `trace has span where service == "db"`)
	_, err := EvaluateRule(context.Background(), cr, trace, Options{StepBudget: 10})
	if !errors.Is(err, core.ErrEvaluationTimeout) {
		t.Fatalf("err = %v, want ErrEvaluationTimeout", err)
	}
}

func TestEvaluateRuleCancelledContext(t *testing.T) {
	trace := evalTrace(evalSpan("s1", "db", "query", 0, nil))
	for i := 2; i < 200; i++ {
		trace.Spans = append(trace.Spans, evalSpan(string(rune('a'+i%26))+"y", "db", "query", time.Duration(i)*time.Millisecond, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cr := mustCompile(t, "r1", `trace has span where service == "db"`)
	_, err := EvaluateRule(ctx, cr, trace, Options{})
	if !errors.Is(err, core.ErrEvaluationTimeout) {
		t.Fatalf("err = %v, want ErrEvaluationTimeout", err)
	}
}

// recordingCaps captures emissions in order.
type recordingCaps struct {
	emitted  []string
	contexts []map[string]any
	fail     map[string]error
}

func (c *recordingCaps) EmitSignal(ruleID, ruleName string, context map[string]any, matched []core.Span) error {
	if err := c.fail[ruleID]; err != nil {
		return err
	}
	c.emitted = append(c.emitted, ruleID)
	c.contexts = append(c.contexts, context)
	return nil
}

func TestEvaluateTraceEmissionOrder(t *testing.T) {
	trace := evalTrace(evalSpan("s1", "db", "query", 0, nil))

	compile := func(id string, sev core.Severity) CompiledRule {
		cr, err := Compile(core.Rule{
			ID:       id,
			Name:     "rule " + id,
			Source:   `trace has span where service == "db"`,
			Enabled:  true,
			Severity: sev,
		})
		if err != nil {
			t.Fatal(err)
		}
		return cr
	}

	// Registration order is deliberately scrambled.
	eng := New([]CompiledRule{
		compile("b-low", core.SeverityLow),
		compile("z-critical", core.SeverityCritical),
		compile("a-low", core.SeverityLow),
		compile("m-high", core.SeverityHigh),
	})

	caps := &recordingCaps{}
	outcomes := eng.EvaluateTrace(context.Background(), trace, caps, Options{})

	want := []string{"z-critical", "m-high", "a-low", "b-low"}
	if !reflect.DeepEqual(caps.emitted, want) {
		t.Errorf("emission order = %v, want %v", caps.emitted, want)
	}
	if len(outcomes) != 4 {
		t.Fatalf("outcomes = %d, want 4", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Rule.ID != want[i] {
			t.Errorf("outcome %d rule = %q, want %q", i, o.Rule.ID, want[i])
		}
	}
}

func TestEvaluateTraceEmitContext(t *testing.T) {
	trace := evalTrace(evalSpan("s1", "db", "query", 0, nil))

	cr, err := Compile(core.Rule{
		ID:       "r1",
		Name:     "db access",
		Source:   `trace has span where service == "db"`,
		Enabled:  true,
		Severity: core.SeverityHigh,
		Category: "data-access",
	})
	if err != nil {
		t.Fatal(err)
	}

	caps := &recordingCaps{}
	New([]CompiledRule{cr}).EvaluateTrace(context.Background(), trace, caps, Options{})

	if len(caps.contexts) != 1 {
		t.Fatalf("emissions = %d, want 1", len(caps.contexts))
	}
	got := caps.contexts[0]
	if got["trace_id"] != "t1" || got["severity"] != "high" || got["category"] != "data-access" {
		t.Errorf("emit context = %v", got)
	}
}

func TestEvaluateTraceRuleIsolation(t *testing.T) {
	trace := evalTrace(evalSpan("s1", "db", "query", 0, nil))

	healthy := mustCompile(t, "healthy", `trace has span where service == "db"`)

	// Comparing a missing attribute fails at filter run time.
	broken, err := Compile(core.Rule{
		ID:       "broken",
		Name:     "rule broken",
		Source:   `trace has span where attributes["latency"] > 100`,
		Enabled:  true,
		Severity: core.SeverityCritical,
	})
	if err != nil {
		t.Fatal(err)
	}

	eng := New([]CompiledRule{healthy, broken})

	caps := &recordingCaps{}
	outcomes := eng.EvaluateTrace(context.Background(), trace, caps, Options{})

	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].Rule.ID != "broken" || outcomes[0].Err == nil {
		t.Errorf("broken rule: %+v, want evaluation error first", outcomes[0])
	}
	if outcomes[1].Rule.ID != "healthy" || outcomes[1].Err != nil || outcomes[1].Match == nil {
		t.Errorf("healthy rule: %+v, want clean match", outcomes[1])
	}
	if got, want := caps.emitted, []string{"healthy"}; !reflect.DeepEqual(got, want) {
		t.Errorf("emitted = %v, want %v", got, want)
	}
}

func TestEvaluateTraceEmitFailureReported(t *testing.T) {
	trace := evalTrace(evalSpan("s1", "db", "query", 0, nil))

	cr := mustCompile(t, "r1", `trace has span where service == "db"`)
	emitErr := errors.New("sink unavailable")
	caps := &recordingCaps{fail: map[string]error{"r1": emitErr}}

	outcomes := New([]CompiledRule{cr}).EvaluateTrace(context.Background(), trace, caps, Options{})
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(outcomes))
	}
	if !errors.Is(outcomes[0].Err, emitErr) {
		t.Errorf("err = %v, want emit failure", outcomes[0].Err)
	}
	if outcomes[0].Match == nil {
		t.Error("match should still be reported")
	}
}
