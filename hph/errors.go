package hph

import "github.com/pkg/errors"

// Contract violations. Every public call checks its preconditions before
// touching engine state and returns one of these (wrapped with context).
var (
	ErrInvalidConfig   = errors.New("hph: invalid engine configuration")
	ErrLengthMismatch  = errors.New("hph: buffer length mismatch")
	ErrIndexOutOfRange = errors.New("hph: location index out of range")
	ErrStateIncomplete = errors.New("hph: engine state not fully set")
)
