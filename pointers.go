package llmwire

// Pointer helpers for optional parameters.

func String(s string) *string {
	return &s
}

func Int(i int) *int {
	return &i
}

func Float(f float64) *float64 {
	return &f
}

func Bool(b bool) *bool {
	return &b
}
