package evidence

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

// canonicalVersion pins the serialization so two independent
// implementations (or two versions of this one) produce byte-identical
// output for the same logical record. Bump only with a migration plan:
// verification of old signatures depends on replaying the exact bytes.
const canonicalVersion = "betrace.evidence.v1"

// CanonicalBytes produces the deterministic serialization that gets
// signed: fixed field order, sorted detail keys, timestamps as decimal
// nanoseconds, all values quoted so embedded separators cannot alias
// two different records to the same bytes.
func CanonicalBytes(e core.Evidence) []byte {
	var buf bytes.Buffer

	writeField := func(key, value string) {
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(strconv.Quote(value))
		buf.WriteByte('\n')
	}

	buf.WriteString(canonicalVersion)
	buf.WriteByte('\n')

	writeField("id", e.ID.String())
	writeField("framework", e.Framework)
	writeField("control_id", e.ControlID)
	writeField("tenant_id", e.TenantID)
	writeField("signal_id", e.SignalID.String())
	writeField("trace_id", e.TraceID)
	writeField("created_at", strconv.FormatInt(e.CreatedAt.UnixNano(), 10))

	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField("detail."+k, e.Details[k])
	}

	return buf.Bytes()
}
