package update

import (
	"errors"
	"fmt"
	"strings"
)

// UpdateError represents an error detected while registering, validating or
// applying pending updates.
//
// UpdateError includes structured fields so callers can name the offending
// store, node and operations.
type UpdateError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Store names the affected store, if any.
	Store string

	// Target identifies the offending node; zero if not node-specific.
	Target Target

	// Kinds lists the operations involved (conflicts name both sides).
	Kinds []Kind

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes update errors.
type ErrorCode string

const (
	// ErrCodeAlreadyFinished indicates registration after Finish or a second
	// ValidateAndApply. Always a contract violation by the caller.
	ErrCodeAlreadyFinished ErrorCode = "ALREADY_FINISHED"

	// ErrCodeConflictingUpdate indicates semantically incompatible primitives
	// on the same node or element.
	ErrCodeConflictingUpdate ErrorCode = "CONFLICTING_UPDATE"

	// ErrCodeAddressResolution indicates a target that does not resolve, an
	// unknown store, or a store that changed since the snapshot was taken.
	ErrCodeAddressResolution ErrorCode = "ADDRESS_RESOLUTION"

	// ErrCodeApplyFailure indicates the store rejected an edit after
	// validation passed. Fatal; nothing is rolled back.
	ErrCodeApplyFailure ErrorCode = "APPLY_FAILURE"

	// ErrCodeInvalidUpdate indicates a primitive whose kind does not fit its
	// target or payload, e.g. inserting siblings next to an attribute.
	ErrCodeInvalidUpdate ErrorCode = "INVALID_UPDATE"
)

// Error implements the error interface.
func (e *UpdateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var ctx []string
	if e.Store != "" {
		ctx = append(ctx, "store="+e.Store)
	}
	if !e.Target.IsZero() {
		ctx = append(ctx, "target="+e.Target.String())
	}
	if len(e.Kinds) > 0 {
		names := make([]string, len(e.Kinds))
		for i, k := range e.Kinds {
			names[i] = k.String()
		}
		ctx = append(ctx, "ops="+strings.Join(names, ","))
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *UpdateError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first UpdateError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ue *UpdateError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ""
}

// IsConflict returns true if err is a conflicting update error.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflictingUpdate
}

// IsAlreadyFinished returns true if err reports use after finish.
func IsAlreadyFinished(err error) bool {
	return CodeOf(err) == ErrCodeAlreadyFinished
}

// IsAddressResolution returns true if err reports an unresolvable target.
func IsAddressResolution(err error) bool {
	return CodeOf(err) == ErrCodeAddressResolution
}

// IsApplyFailure returns true if err reports a failed apply.
func IsApplyFailure(err error) bool {
	return CodeOf(err) == ErrCodeApplyFailure
}

// IsInvalidUpdate returns true if err reports a mistyped primitive.
func IsInvalidUpdate(err error) bool {
	return CodeOf(err) == ErrCodeInvalidUpdate
}

func newConflict(store string, target Target, msg string, kinds ...Kind) *UpdateError {
	return &UpdateError{
		Code:    ErrCodeConflictingUpdate,
		Message: msg,
		Store:   store,
		Target:  target,
		Kinds:   kinds,
	}
}

func newInvalid(store string, target Target, kind Kind, format string, args ...any) *UpdateError {
	return &UpdateError{
		Code:    ErrCodeInvalidUpdate,
		Message: fmt.Sprintf(format, args...),
		Store:   store,
		Target:  target,
		Kinds:   []Kind{kind},
	}
}

func newUnresolved(store string, target Target, format string, args ...any) *UpdateError {
	return &UpdateError{
		Code:    ErrCodeAddressResolution,
		Message: fmt.Sprintf(format, args...),
		Store:   store,
		Target:  target,
	}
}

func newApplyFailure(store string, target Target, err error, format string, args ...any) *UpdateError {
	return &UpdateError{
		Code:    ErrCodeApplyFailure,
		Message: fmt.Sprintf(format, args...),
		Store:   store,
		Target:  target,
		Err:     err,
	}
}

func newAlreadyFinished(store, msg string) *UpdateError {
	return &UpdateError{
		Code:    ErrCodeAlreadyFinished,
		Message: msg,
		Store:   store,
	}
}
