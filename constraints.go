package llmwire

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Field constraint helpers for request builders. Each returns a
// *ValidationError naming the field; values are never clamped.

// CheckRange fails when v is set and outside [min, max].
func CheckRange[T cmp.Ordered](field string, v *T, min, max T) error {
	if v == nil || (*v >= min && *v <= max) {
		return nil
	}
	return &ValidationError{Field: field, Value: *v, Reason: fmt.Sprintf("must be between %v and %v", min, max)}
}

// CheckMin fails when v is set and below min.
func CheckMin[T cmp.Ordered](field string, v *T, min T) error {
	if v == nil || *v >= min {
		return nil
	}
	return &ValidationError{Field: field, Value: *v, Reason: fmt.Sprintf("must be at least %v", min)}
}

// CheckEnum fails when v is set and not one of allowed.
func CheckEnum(field string, v *string, allowed ...string) error {
	if v == nil || slices.Contains(allowed, *v) {
		return nil
	}
	return &ValidationError{Field: field, Value: *v, Reason: "must be one of " + strings.Join(allowed, ", ")}
}

// CheckExclusive fails when both fields are set.
func CheckExclusive(a string, aSet bool, b string, bSet bool) error {
	if aSet && bSet {
		return &ValidationError{Field: a, Value: b, Reason: fmt.Sprintf("cannot be combined with %s", b)}
	}
	return nil
}

// FirstError returns the first non-nil error.
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
