package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(CredentialsMissing, "no API key configured", cause)

	if err.Code != CredentialsMissing {
		t.Errorf("Code = %v, want %v", err.Code, CredentialsMissing)
	}
	if err.Message != "no API key configured" {
		t.Errorf("Message = %q", err.Message)
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      RemoteFailure,
			message:   "analyze request failed",
			cause:     errors.New("connection refused"),
			wantParts: []string{"REMOTE_FAILURE", "analyze request failed", "connection refused"},
		},
		{
			name:      "without cause",
			code:      InvalidKey,
			message:   "key must not be empty",
			wantParts: []string{"INVALID_KEY", "key must not be empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(InternalError, "something went wrong", cause)
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestCodeOfAndIs(t *testing.T) {
	inner := New(Unauthorized, "token rejected", nil)
	wrapped := fmt.Errorf("scan: %w", New(RemoteFailure, "analyze failed", inner))

	if got := CodeOf(wrapped); got != RemoteFailure {
		t.Errorf("CodeOf = %s, want %s", got, RemoteFailure)
	}
	if !Is(wrapped, Unauthorized) {
		t.Error("Is should find nested Unauthorized code")
	}
	if Is(wrapped, ValueTooLarge) {
		t.Error("Is should not find absent code")
	}
	if got := CodeOf(errors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(plain) = %s, want %s", got, InternalError)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q", got)
	}

	msg := UserMessage(New(CredentialsMissing, "No API key is stored.", nil))
	if !strings.Contains(msg, "not signed in") || !strings.Contains(msg, "livecheck login") {
		t.Errorf("unexpected message: %q", msg)
	}

	msg = UserMessage(errors.New("boom"))
	if !strings.Contains(msg, "boom") {
		t.Errorf("unexpected message: %q", msg)
	}

	msg = UserMessage(fmt.Errorf("analyze: %w", httpErr(401)))
	if !strings.Contains(msg, "expired") {
		t.Errorf("401 should read as an expired session: %q", msg)
	}
	msg = UserMessage(httpErr(503))
	if !strings.Contains(msg, "analysis service") {
		t.Errorf("unexpected message for 503: %q", msg)
	}
}

type httpErr int

func (e httpErr) Error() string   { return fmt.Sprintf("HTTP %d", int(e)) }
func (e httpErr) HTTPStatus() int { return int(e) }

func TestGetSuggestedFixes(t *testing.T) {
	if fixes := GetSuggestedFixes(RemoteFailure); fixes != nil {
		t.Errorf("expected no fixes for RemoteFailure, got %v", fixes)
	}
	if fixes := GetSuggestedFixes(Unauthorized); len(fixes) == 0 {
		t.Error("expected fixes for Unauthorized")
	}
}
