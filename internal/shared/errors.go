package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDate occurs when a date filter is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	// ErrInvalidPeriod occurs when a month/year filter is out of range.
	ErrInvalidPeriod = errors.New("month must be 1-12 and year a positive number")
)
