package model

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError lists every problem found in a submission.
type ValidationError struct {
	Problems []string
}

// Add records a problem.
func (e *ValidationError) Add(problem string) {
	e.Problems = append(e.Problems, problem)
}

// Empty reports whether no problems were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Problems) == 0
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid input"
	}
	return "invalid input: " + strings.Join(e.Problems, "; ")
}
