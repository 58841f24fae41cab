package payroll

import "errors"

var (
	ErrNotFound          = errors.New("salary record not found")
	ErrInvalidTransition = errors.New("invalid salary status transition")
	ErrInvalidMonth      = errors.New("month must be in YYYY-MM format")
)
