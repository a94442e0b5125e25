package planner

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for broad classification.
var (
	ErrUnknownTarget  = errors.New("unknown target")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidConfig  = errors.New("invalid config")
)

// TargetError reports a target that could not be resolved in the catalog.
type TargetError struct {
	Query       string
	Suggestions []string
}

func (e *TargetError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %q", ErrUnknownTarget, e.Query)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *TargetError) Unwrap() error {
	return ErrUnknownTarget
}
