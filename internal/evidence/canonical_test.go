package evidence

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

func canonicalFixture() core.Evidence {
	return core.Evidence{
		ID:        uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		Framework: "SOC2",
		ControlID: "CC7.2",
		TenantID:  "acme",
		SignalID:  uuid.MustParse("99999999-8888-7777-6666-555555555555"),
		TraceID:   "t1",
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Details: map[string]string{
			"severity": "high",
			"rule_id":  "r1",
		},
	}
}

func TestCanonicalBytesStable(t *testing.T) {
	ev := canonicalFixture()

	first := CanonicalBytes(ev)
	for i := 0; i < 20; i++ {
		if !bytes.Equal(first, CanonicalBytes(ev)) {
			t.Fatal("serialization not deterministic")
		}
	}

	lines := strings.Split(string(first), "\n")
	if lines[0] != canonicalVersion {
		t.Errorf("first line = %q, want version pin", lines[0])
	}
	// Detail keys come last, sorted.
	want := []string{
		`detail.rule_id="r1"`,
		`detail.severity="high"`,
	}
	got := lines[len(lines)-3 : len(lines)-1]
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("detail line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCanonicalBytesDistinguishesRecords(t *testing.T) {
	base := canonicalFixture()

	mutations := []func(*core.Evidence){
		func(e *core.Evidence) { e.Framework = "ISO27001" },
		func(e *core.Evidence) { e.ControlID = "CC7.3" },
		func(e *core.Evidence) { e.TenantID = "globex" },
		func(e *core.Evidence) { e.TraceID = "t2" },
		func(e *core.Evidence) { e.CreatedAt = e.CreatedAt.Add(time.Nanosecond) },
		func(e *core.Evidence) { e.Details = map[string]string{"severity": "low", "rule_id": "r1"} },
	}

	baseline := CanonicalBytes(base)
	for i, mutate := range mutations {
		ev := canonicalFixture()
		mutate(&ev)
		if bytes.Equal(baseline, CanonicalBytes(ev)) {
			t.Errorf("mutation %d produced identical bytes", i)
		}
	}
}

func TestCanonicalBytesQuotesSeparators(t *testing.T) {
	// Values containing the field separator must not let two distinct
	// records alias to the same bytes.
	a := canonicalFixture()
	a.Details = map[string]string{"k": "v\ndetail.x=\"y\""}

	b := canonicalFixture()
	b.Details = map[string]string{"k": "v", "x": "y"}

	if bytes.Equal(CanonicalBytes(a), CanonicalBytes(b)) {
		t.Fatal("separator injection aliased two records")
	}
}
