package validation

import (
	"fmt"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/engine"
)

// ValidateRules checks a tenant's rule set for structural problems and
// compiles every enabled rule to catch pattern errors at load time
// rather than on the first trace.
func ValidateRules(tenantID string, rules []core.Rule) ([]core.Rule, error) {
	seenIDs := make(map[string]struct{})
	var validRules []core.Rule

	for i, rule := range rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule #%d missing id", i)
		}
		if _, exists := seenIDs[rule.ID]; exists {
			return nil, fmt.Errorf("rule id %q is not unique", rule.ID)
		}
		seenIDs[rule.ID] = struct{}{}

		if rule.Name == "" {
			return nil, fmt.Errorf("rule %q missing name", rule.ID)
		}
		if rule.Source == "" {
			return nil, fmt.Errorf("rule %q missing source", rule.ID)
		}
		if !rule.Severity.IsValid() {
			return nil, fmt.Errorf("rule %q missing or invalid severity", rule.ID)
		}

		rule.TenantID = tenantID
		if rule.Enabled {
			if _, err := engine.Compile(rule); err != nil {
				return nil, fmt.Errorf("compiling rule %q: %w", rule.ID, err)
			}
		}

		validRules = append(validRules, rule)
	}

	return validRules, nil
}
