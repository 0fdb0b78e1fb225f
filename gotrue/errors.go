package gotrue

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrSessionMissing is returned by operations that need a stored session.
var ErrSessionMissing = errors.New("Auth session missing!")

// APIError is a non 2xx reply from the provider.
type APIError struct {
	Status  int
	Code    string // provider native stable code, when sent
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// IsUnauthorized reports whether err is a provider rejection of the caller's token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// IsClientError reports whether err is a 4xx reply from the provider.
func IsClientError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500
}

// errorBody covers the three error shapes the provider has used over time:
// {code, error_code, msg}, {error, error_description} and {message}.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	apiErr.Code = eb.ErrorCode
	if apiErr.Code == "" && len(eb.Code) > 0 {
		var code string
		if json.Unmarshal(eb.Code, &code) == nil {
			apiErr.Code = code
		}
	}

	for _, m := range []string{eb.Msg, eb.Message, eb.ErrorDescription, eb.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
