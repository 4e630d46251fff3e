package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("reaction not found")
	ErrInvalidDefinition = errors.New("invalid reaction definition")
	ErrEngineRunning     = errors.New("engine already running")
	ErrDispatcherClosed  = errors.New("dispatcher closed")
	ErrUnavailable       = errors.New("color unavailable")
	ErrBadSlot           = errors.New("pixel slot out of range")
)

// FieldError names the offending field and value of a rejected definition.
type FieldError struct {
	Reaction string
	Field    string
	Value    interface{}
	Reason   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("reaction %q: invalid %s %v: %s", e.Reaction, e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidDefinition.
func (e *FieldError) Unwrap() error { return ErrInvalidDefinition }
