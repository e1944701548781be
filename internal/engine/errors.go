package engine

import (
	"errors"
	"fmt"
)

// EngineError represents an error detected while driving a session.
//
// Engine errors fall into four groups:
//   - Caller errors: invalid picks, unknown qid or option, wrong phase.
//     Session state is unchanged and the core never retries them.
//   - State-sequencing errors: E_STATE, E_VERSION_MISMATCH. Recoverable
//     only by the caller re-fetching correct session state.
//   - Bank-defect errors: E_BANK_DEFECT, E_SCHEDULER_IMPOSSIBLE. The
//     supplied bank cannot satisfy the contract; fatal for the session
//     and always propagated, never papered over with a default.
//   - Concurrency errors: E_LOCK_TIMEOUT. Safe to retry from the caller.
//
// EngineError includes structured fields for diagnostics and recovery.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID identifies the affected session, when one is involved.
	SessionID string

	// QID identifies the question involved (submit/lookup errors).
	QID string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes engine errors. The string values are part of the
// external contract: the CLI and conformance scenarios match on them.
type ErrorCode string

const (
	// ErrCodeState indicates an operation was called in a phase that does
	// not permit it.
	ErrCodeState ErrorCode = "E_STATE"

	// ErrCodePicksInvalid indicates setPicks received unknown, duplicate,
	// or too many family names.
	ErrCodePicksInvalid ErrorCode = "E_PICKS_INVALID"

	// ErrCodeQIDUnknown indicates a qid outside the session's schedule.
	ErrCodeQIDUnknown ErrorCode = "E_QID_UNKNOWN"

	// ErrCodeOptionUnknown indicates an option key the question lacks.
	ErrCodeOptionUnknown ErrorCode = "E_OPTION_UNKNOWN"

	// ErrCodeSessionUnknown indicates the session ID is not registered.
	ErrCodeSessionUnknown ErrorCode = "E_SESSION_UNKNOWN"

	// ErrCodeVersionMismatch indicates the loaded bank's hash no longer
	// matches the hash the session was bound to at init.
	ErrCodeVersionMismatch ErrorCode = "E_VERSION_MISMATCH"

	// ErrCodeSessionAborted indicates an operation on an aborted session.
	ErrCodeSessionAborted ErrorCode = "E_SESSION_ABORTED"

	// ErrCodeBankDefect indicates malformed bank content reached the
	// engine (e.g. an option with no lineCOF).
	ErrCodeBankDefect ErrorCode = "E_BANK_DEFECT"

	// ErrCodeSchedulerImpossible indicates a required probe could not be
	// sourced from the bank.
	ErrCodeSchedulerImpossible ErrorCode = "E_SCHEDULER_IMPOSSIBLE"

	// ErrCodeLockTimeout indicates the per-session lock could not be
	// acquired within the configured bound.
	ErrCodeLockTimeout ErrorCode = "E_LOCK_TIMEOUT"

	// ErrCodeIncompleteSession indicates finalize was requested before
	// every scheduled question was answered.
	ErrCodeIncompleteSession ErrorCode = "E_INCOMPLETE_SESSION"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.SessionID != "" && e.QID != "" {
		return fmt.Sprintf("%s: %s (session=%s, qid=%s)", e.Code, e.Message, e.SessionID, e.QID)
	}
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.SessionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the ErrorCode from an error, unwrapping as needed.
// Returns "" for nil or non-engine errors.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsCode reports whether the error carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// newStateError creates an EngineError for an operation in the wrong phase.
func newStateError(sessionID string, phase Phase, op string) *EngineError {
	return &EngineError{
		Code:      ErrCodeState,
		Message:   fmt.Sprintf("%s not allowed in phase %s", op, phase),
		SessionID: sessionID,
		Details:   map[string]string{"phase": string(phase), "op": op},
	}
}

// newVersionMismatchError creates an EngineError for bank hash drift.
func newVersionMismatchError(sessionID, bound, loaded string) *EngineError {
	return &EngineError{
		Code:      ErrCodeVersionMismatch,
		Message:   "session is bound to a different bank than the one loaded",
		SessionID: sessionID,
		Details:   map[string]string{"bound_hash": bound, "loaded_hash": loaded},
	}
}

// newLockTimeoutError creates an EngineError for a lock acquisition timeout.
func newLockTimeoutError(sessionID string) *EngineError {
	return &EngineError{
		Code:      ErrCodeLockTimeout,
		Message:   "timed out waiting for session lock",
		SessionID: sessionID,
	}
}
