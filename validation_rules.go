package llmwire

import (
	"fmt"
)

// Built-in rule names, usable with ValidationEngine.RemoveRule.
const (
	RuleModel            = "Model Validation"
	RuleTool             = "Tool Validation"
	RuleThinking         = "Thinking Validation"
	RuleVision           = "Vision Validation"
	RuleStructuredOutput = "Structured Output Validation"
	RuleParameter        = "Parameter Validation"
)

// builtinRules returns the catalogue-backed rules in evaluation order.
func builtinRules(reg *CapabilityRegistry) []ValidationRule {
	c := catalogueChecks{reg: reg}
	return []ValidationRule{
		NewRule(RuleModel, c.model),
		NewRule(RuleTool, c.tools),
		NewRule(RuleThinking, c.thinking),
		NewRule(RuleVision, c.vision),
		NewRule(RuleStructuredOutput, c.structuredOutput),
		NewRule(RuleParameter, c.parameters),
	}
}

type catalogueChecks struct {
	reg *CapabilityRegistry
}

func warning(code WarningCode, category WarningCategory, field string, value any, severity Severity, format string, args ...any) ValidationWarning {
	return ValidationWarning{
		Code:     code,
		Category: category,
		Field:    field,
		Value:    value,
		Message:  fmt.Sprintf(format, args...),
		Severity: severity,
	}
}

// model flags a model the catalogue does not list. Providers without a
// catalogue entry (lorem) are skipped.
func (c catalogueChecks) model(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	if _, err := c.reg.GetProviderCapabilities(provider); err != nil || c.reg.SupportsModel(provider, req.Model) {
		return nil
	}
	return []ValidationWarning{warning(WarningCodeModelUnknown, CategoryModel, "model", req.Model, SeverityInfo,
		"model %s is not in the %s catalogue; capability checks are skipped", req.Model, provider)}
}

func (c catalogueChecks) tools(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	if len(req.Tools) == 0 {
		return nil
	}
	m, err := c.reg.GetModelCapability(provider, req.Model)
	if err != nil || m.Features.Tools {
		return nil
	}
	return []ValidationWarning{warning(WarningCodeModelDoesNotSupportTools, CategoryTool, "tools", len(req.Tools), SeverityWarning,
		"model %s does not advertise tool calling", req.Model)}
}

func (c catalogueChecks) thinking(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	if !req.Params.ThinkingRequested() {
		return nil
	}
	m, err := c.reg.GetModelCapability(provider, req.Model)
	if err != nil {
		return nil
	}
	if !m.Features.Thinking {
		return []ValidationWarning{warning(WarningCodeThinkingUnsupported, CategoryThinking, "thinking", true, SeverityWarning,
			"model %s does not advertise extended thinking", req.Model)}
	}

	budget := req.Params.GetThinkingBudgetTokens()
	var out []ValidationWarning
	if floor := m.Thinking.MinBudget; floor > 0 && budget < floor {
		out = append(out, warning(WarningCodeThinkingBudgetTooLow, CategoryThinking, "thinking_level", budget, SeverityInfo,
			"thinking budget %d is below the minimum %d", budget, floor))
	}
	if ceiling := m.Thinking.MaxBudget; ceiling > 0 && budget > ceiling {
		out = append(out, warning(WarningCodeThinkingBudgetTooHigh, CategoryThinking, "thinking_level", budget, SeverityError,
			"thinking budget %d exceeds the maximum %d", budget, ceiling))
	}
	return out
}

func (c catalogueChecks) vision(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	if !containsBlock(req.Messages, BlockTypeImage) {
		return nil
	}
	m, err := c.reg.GetModelCapability(provider, req.Model)
	if err != nil || m.Features.Vision {
		return nil
	}
	return []ValidationWarning{warning(WarningCodeVisionUnsupported, CategoryVision, "messages", BlockTypeImage, SeverityWarning,
		"model %s does not advertise image input", req.Model)}
}

func (c catalogueChecks) structuredOutput(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	if !req.ResponseFormat.WantsJSON() {
		return nil
	}
	switch c.reg.StructuredOutput(provider, req.Model) {
	case StructuredOutputEmulated:
		return []ValidationWarning{warning(WarningCodeStructuredOutputEmulated, CategoryStructuredOutput, "response_format", req.ResponseFormat.Type, SeverityInfo,
			"%s emulates structured output with instructions; the schema is not enforced", provider)}
	case StructuredOutputNone:
		return []ValidationWarning{warning(WarningCodeStructuredOutputUnsupported, CategoryStructuredOutput, "response_format", req.ResponseFormat.Type, SeverityWarning,
			"model %s does not advertise response_format", req.Model)}
	}
	return nil
}

func (c catalogueChecks) parameters(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	if req.Params == nil {
		return nil
	}
	caps, err := c.reg.GetProviderCapabilities(provider)
	if err != nil {
		return nil
	}
	limits := caps.Constraints

	var out []ValidationWarning
	if t := req.Params.Temperature; t != nil && (*t < limits.TemperatureMin || *t > limits.TemperatureMax) {
		out = append(out, warning(WarningCodeTemperatureOutOfRange, CategoryParameter, "temperature", *t, SeverityWarning,
			"temperature %.2f is outside [%.2f, %.2f]", *t, limits.TemperatureMin, limits.TemperatureMax))
	}
	if p := req.Params.TopP; p != nil && (*p < limits.TopPMin || *p > limits.TopPMax) {
		out = append(out, warning(WarningCodeTopPOutOfRange, CategoryParameter, "top_p", *p, SeverityWarning,
			"top_p %.2f is outside [%.2f, %.2f]", *p, limits.TopPMin, limits.TopPMax))
	}
	return out
}

func containsBlock(messages []Message, t BlockType) bool {
	for _, msg := range messages {
		for _, block := range msg.Content {
			if block.Type() == t {
				return true
			}
		}
	}
	return false
}
