package moderation

import (
	"errors"
	"fmt"
)

// Class groups errors by how a caller is expected to react to them.
type Class int

const (
	ClassUnknown Class = iota
	// ClassPrecondition is a missing or invalid argument. Nothing was applied.
	ClassPrecondition
	// ClassPolicy means the operation was refused and state is unchanged.
	ClassPolicy
	// ClassSideEffect means a gateway call failed after state may already
	// have been persisted.
	ClassSideEffect
)

func (c Class) String() string {
	switch c {
	case ClassPrecondition:
		return "precondition"
	case ClassPolicy:
		return "policy"
	case ClassSideEffect:
		return "side effect"
	default:
		return "unknown"
	}
}

type Error struct {
	Class Class
	Msg   string
}

func (e *Error) Error() string {
	return e.Msg
}

func precondition(msg string) *Error { return &Error{Class: ClassPrecondition, Msg: msg} }
func policy(msg string) *Error       { return &Error{Class: ClassPolicy, Msg: msg} }

var (
	ErrMissingGuild    = precondition("no guild specified")
	ErrMissingMember   = precondition("no member specified")
	ErrMissingChannel  = precondition("no channel specified")
	ErrMissingRole     = precondition("no role specified")
	ErrMissingDuration = precondition("temporary mute requires a duration")
	ErrInvalidKind     = precondition("invalid mute kind")
	ErrUnknownFeature  = precondition("unknown feature")
	ErrUnknownField    = precondition("unknown record field")

	ErrAlreadyMuted        = policy("member already has a mute")
	ErrNoMute              = policy("member has no mute")
	ErrNoMuteRole          = policy("no mute role configured")
	ErrMemberLacksMuteRole = policy("member does not have the mute role")
	ErrAlreadyEnabled      = policy("feature is already enabled")
	ErrAlreadyDisabled     = policy("feature is already disabled")
	ErrFeatureDisabled     = policy("feature is disabled")
	ErrNoWarnings          = policy("member has no warnings")
	ErrNoAutoRole          = policy("no auto role configured")
	ErrNoLockdown          = policy("channel has no lockdown")
)

// SideEffectError wraps a failed gateway call.
type SideEffectError struct {
	Op  string
	Err error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SideEffectError) Unwrap() error {
	return e.Err
}

func sideEffect(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SideEffectError{Op: op, Err: err}
}

// ClassOf reports the class of err, or ClassUnknown for storage and other
// unexpected failures.
func ClassOf(err error) Class {
	var se *SideEffectError
	if errors.As(err, &se) {
		return ClassSideEffect
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassUnknown
}

func IsPolicy(err error) bool {
	return ClassOf(err) == ClassPolicy
}
