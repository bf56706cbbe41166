package core

import "fmt"

// Severity ranks how urgent a rule match is. Higher values sort first
// when multiple rules match the same trace.
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s Severity) IsValid() bool {
	return s >= SeverityInfo && s <= SeverityCritical
}

// ParseSeverity converts the textual form used in config files.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "info":
		return SeverityInfo, nil
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("severity must be a string")
	}
	parsed, err := ParseSeverity(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *Severity) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Rule is a tenant-authored pattern over traces.
// The source text is compiled by the engine; the compiled form lives
// with the engine, not here.
type Rule struct {
	// ID identifies the rule within its tenant. Used as the tie-break
	// ordering key when severities are equal.
	ID string `yaml:"id" json:"id"`

	TenantID string `yaml:"-" json:"tenant_id"`

	// Name is a human-readable identifier for logs and signals.
	Name string `yaml:"name" json:"name"`

	// Source is the rule in the trace pattern language.
	Source string `yaml:"source" json:"source"`

	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Severity Severity `yaml:"severity" json:"severity"`
	Category string   `yaml:"category" json:"category,omitempty"`
}
