package results

import "errors"

var (
	ErrResultNotFound = errors.New("results: result not found")
	ErrMissingReport  = errors.New("results: report is required")
	ErrResultCanceled = errors.New("results: result was canceled")
)
