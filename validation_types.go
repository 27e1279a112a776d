package llmwire

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Severity grades a capability warning.
type Severity string

const (
	SeverityInfo    Severity = "info"    // expected in some setups
	SeverityWarning Severity = "warning" // may be rejected or ignored upstream
	SeverityError   Severity = "error"   // the provider will almost certainly reject it
)

// WarningCategory groups warnings by the request area they concern.
type WarningCategory string

const (
	CategoryModel            WarningCategory = "model"
	CategoryTool             WarningCategory = "tool"
	CategoryThinking         WarningCategory = "thinking"
	CategoryVision           WarningCategory = "vision"
	CategoryStructuredOutput WarningCategory = "structured_output"
	CategoryParameter        WarningCategory = "parameter"
)

// WarningCode identifies a warning for programmatic filtering.
type WarningCode string

const (
	WarningCodeModelUnknown                WarningCode = "MODEL_UNKNOWN"
	WarningCodeModelDoesNotSupportTools    WarningCode = "MODEL_DOES_NOT_SUPPORT_TOOLS"
	WarningCodeThinkingUnsupported         WarningCode = "THINKING_UNSUPPORTED"
	WarningCodeThinkingBudgetTooLow        WarningCode = "THINKING_BUDGET_TOO_LOW"
	WarningCodeThinkingBudgetTooHigh       WarningCode = "THINKING_BUDGET_TOO_HIGH"
	WarningCodeVisionUnsupported           WarningCode = "VISION_UNSUPPORTED"
	WarningCodeStructuredOutputEmulated    WarningCode = "STRUCTURED_OUTPUT_EMULATED"
	WarningCodeStructuredOutputUnsupported WarningCode = "STRUCTURED_OUTPUT_UNSUPPORTED"
	WarningCodeTemperatureOutOfRange       WarningCode = "TEMPERATURE_OUT_OF_RANGE"
	WarningCodeTopPOutOfRange              WarningCode = "TOP_P_OUT_OF_RANGE"
)

// ValidationWarning is an advisory finding from the capability catalogue.
// Warnings are logged and never block a request; hard limits live in the
// request builders.
type ValidationWarning struct {
	Code     WarningCode
	Category WarningCategory
	Field    string
	Value    any
	Message  string
	Severity Severity
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message)
}

// MarshalZerologObject lets a warning be logged with Object or EmbedObject.
func (w ValidationWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("code", string(w.Code)).
		Str("category", string(w.Category)).
		Str("field", w.Field).
		Interface("value", w.Value).
		Str("severity", string(w.Severity))
}

// ValidationRule inspects a request and reports warnings.
type ValidationRule interface {
	Name() string
	Check(provider ProviderID, req *GenerateRequest) []ValidationWarning
}

// CheckFunc is the body of a rule built with NewRule.
type CheckFunc func(provider ProviderID, req *GenerateRequest) []ValidationWarning

type funcRule struct {
	name  string
	check CheckFunc
}

func (r funcRule) Name() string { return r.name }

func (r funcRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	return r.check(provider, req)
}

// NewRule adapts fn into a named ValidationRule.
func NewRule(name string, fn CheckFunc) ValidationRule {
	return funcRule{name: name, check: fn}
}
