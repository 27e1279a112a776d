package llmwire

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// ValidationEngine runs capability rules against requests. It is safe for
// concurrent use; rules may be added or removed while requests run.
type ValidationEngine struct {
	mu    sync.RWMutex
	rules []ValidationRule
}

var defaultEngine = sync.OnceValue(func() *ValidationEngine {
	return NewValidationEngine(DefaultCapabilityRegistry())
})

// NewValidationEngine returns an engine with the built-in rules over reg.
// A nil reg yields an engine without rules.
func NewValidationEngine(reg *CapabilityRegistry) *ValidationEngine {
	ve := &ValidationEngine{}
	if reg != nil {
		ve.rules = builtinRules(reg)
	}
	return ve
}

// DefaultValidationEngine returns the shared engine over the embedded catalogue.
func DefaultValidationEngine() *ValidationEngine {
	return defaultEngine()
}

// AddRule appends rule; it runs after the existing rules.
func (ve *ValidationEngine) AddRule(rule ValidationRule) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	ve.rules = append(ve.rules, rule)
}

// RemoveRule drops every rule called name and reports whether one existed.
func (ve *ValidationEngine) RemoveRule(name string) bool {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	before := len(ve.rules)
	ve.rules = slices.DeleteFunc(ve.rules, func(r ValidationRule) bool { return r.Name() == name })
	return len(ve.rules) != before
}

// Validate collects the warnings of every rule. A nil engine reports none.
func (ve *ValidationEngine) Validate(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	if ve == nil {
		return nil
	}
	ve.mu.RLock()
	rules := slices.Clone(ve.rules)
	ve.mu.RUnlock()

	return lo.FlatMap(rules, func(r ValidationRule, _ int) []ValidationWarning {
		return r.Check(provider, req)
	})
}

// FilterWarningsBySeverity keeps the warnings with one of severities.
func FilterWarningsBySeverity(warnings []ValidationWarning, severities ...Severity) []ValidationWarning {
	return lo.Filter(warnings, func(w ValidationWarning, _ int) bool {
		return lo.Contains(severities, w.Severity)
	})
}

// FilterWarningsByCode keeps the warnings with one of codes.
func FilterWarningsByCode(warnings []ValidationWarning, codes ...WarningCode) []ValidationWarning {
	return lo.Filter(warnings, func(w ValidationWarning, _ int) bool {
		return lo.Contains(codes, w.Code)
	})
}
