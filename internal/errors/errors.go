package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// StoreUnavailable indicates the local database could not be opened or its schema created
	StoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// CredentialsMissing indicates the active auth mode has no usable credential
	CredentialsMissing ErrorCode = "CREDENTIALS_MISSING"
	// Unauthorized indicates the service rejected the credential, even after refresh
	Unauthorized ErrorCode = "UNAUTHORIZED"
	// RemoteFailure indicates a non-401 failure talking to the analysis service
	RemoteFailure ErrorCode = "REMOTE_FAILURE"
	// InvalidKey indicates a malformed user data key
	InvalidKey ErrorCode = "INVALID_KEY"
	// ValueTooLarge indicates a user data value above the configured ceiling
	ValueTooLarge ErrorCode = "VALUE_TOO_LARGE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// Error is a livecheck error with a stable code and an optional cause
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new Error with the default fixes for its code
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	CredentialsMissing: {
		{
			Type:        RunCommand,
			Command:     "livecheck login",
			Description: "Store an API key or token pair",
		},
	},
	Unauthorized: {
		{
			Type:        RunCommand,
			Command:     "livecheck login",
			Description: "Sign in again; the stored session was rejected",
		},
	},
	StoreUnavailable: {
		{
			Type:        RunCommand,
			Command:     "livecheck clear",
			Description: "Reset the local cache",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

// CodeOf returns the code of the first *Error in err's chain, or InternalError.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.cause
	}
	return false
}

// UserMessage renders an error as the sentence shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !stderrors.As(err, &e) {
		var sc interface{ HTTPStatus() int }
		if stderrors.As(err, &sc) {
			if sc.HTTPStatus() == 401 {
				return "Your session has expired. Sign in again to continue scanning (try: livecheck login)"
			}
			return "The analysis service could not complete the request. " + err.Error()
		}
		return "Livecheck failed: " + err.Error()
	}

	msg := e.Message
	switch e.Code {
	case CredentialsMissing:
		msg = "You are not signed in. " + msg
	case Unauthorized:
		msg = "Your session has expired. " + msg
	case RemoteFailure:
		msg = "The analysis service could not complete the request. " + msg
	case StoreUnavailable:
		msg = "The local cache is unavailable; results will not persist. " + msg
	}
	if len(e.SuggestedFixes) > 0 && e.SuggestedFixes[0].Command != "" {
		msg += " (try: " + e.SuggestedFixes[0].Command + ")"
	}
	return msg
}
