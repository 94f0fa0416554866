package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx response from the service.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// HTTPStatus returns the response status.
func (e *Error) HTTPStatus() int {
	return e.StatusCode
}

type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// parseErrorResponse extracts error information from a response.
func parseErrorResponse(statusCode int, body []byte) error {
	e := &Error{StatusCode: statusCode, Code: "unknown_error"}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(statusCode)
		}
		return e
	}

	switch {
	case parsed.Error != nil:
		e.Code, e.Message = parsed.Error.Code, parsed.Error.Message
	case parsed.Message != "":
		e.Message = parsed.Message
		if parsed.Code != "" {
			e.Code = parsed.Code
		}
	default:
		e.Message = fmt.Sprintf("HTTP %d", statusCode)
	}
	if e.Code == "" {
		e.Code = "unknown_error"
	}
	return e
}
