// Package common provides shared errors and retry utilities used across
// the application.
package common

import "errors"

// Common application errors.
var (
	// Storage errors.
	ErrNotFound = errors.New("not found")

	// Pipeline errors.
	ErrNoOwningUser = errors.New("no owning user found for batch")

	// Suggestion service errors.
	ErrSuggestionFailed = errors.New("suggestion request failed")
)
