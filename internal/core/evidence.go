package core

import (
	"time"

	"github.com/google/uuid"
)

// Evidence asserts that a specific compliance control was exercised,
// linked to the signal that exercised it.
type Evidence struct {
	ID uuid.UUID `json:"id"`

	// Framework is the compliance framework (e.g. "SOC2", "ISO27001").
	Framework string `json:"framework"`

	// ControlID is the control within the framework (e.g. "CC7.2").
	ControlID string `json:"control_id"`

	TenantID string    `json:"tenant_id"`
	SignalID uuid.UUID `json:"signal_id"`
	TraceID  string    `json:"trace_id"`

	CreatedAt time.Time `json:"created_at"`

	// Details are free-form string annotations. They participate in
	// the canonical serialization in sorted key order.
	Details map[string]string `json:"details,omitempty"`
}

// SignedEvidence is evidence plus its detached signature. Records
// predating signing support carry an empty KeyID and Signature.
type SignedEvidence struct {
	Evidence Evidence `json:"evidence"`

	KeyID     string `json:"key_id,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Signature []byte `json:"signature,omitempty"`
}

// Signed reports whether the record carries a signature at all.
func (se SignedEvidence) Signed() bool {
	return se.KeyID != "" && len(se.Signature) > 0
}

// VerificationResult is the outcome of checking a signed evidence
// record. Valid is nil (unknown) for records predating signing
// support, not false.
type VerificationResult struct {
	Valid *bool  `json:"valid"`
	Error string `json:"error,omitempty"`
}

// VerificationValid/Invalid/Unknown build the three possible outcomes.
func VerificationValid() VerificationResult {
	v := true
	return VerificationResult{Valid: &v}
}

func VerificationInvalid(reason string) VerificationResult {
	v := false
	return VerificationResult{Valid: &v, Error: reason}
}

func VerificationUnknown() VerificationResult {
	return VerificationResult{}
}
