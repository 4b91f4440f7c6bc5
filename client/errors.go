package client

import (
	"encoding/json"
	"fmt"
)

// Defaults used when an error response body is absent or unparsable.
const (
	defaultErrorCode    = "unknown_error"
	defaultErrorMessage = "An error occurred"
)

// APIError is a terminal non-2xx answer from the API, after the retry
// policy was exhausted or for statuses that are never retried.
type APIError struct {
	// Code is the machine-readable error code from the response body.
	Code string

	// Message is the human-readable error text.
	Message string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// RequestID is the server-assigned id of the failed request, when
	// the body carried one. Useful in support tickets.
	RequestID string

	// Body is the raw response body.
	Body []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meetwire: api error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

// RequestError is a request that could not be sent or got no response:
// construction failures, authentication hook failures, DNS errors,
// timeouts.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("meetwire: request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// errorBody is the wire shape of API error responses.
type errorBody struct {
	Code      string `json:"code"`
	Err       string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// decodeAPIError builds an APIError from a non-2xx response. The body's
// "error" field is preferred over "message" for display text; defaults
// apply when the body is absent or not JSON.
func decodeAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Code:       defaultErrorCode,
		Message:    defaultErrorMessage,
		StatusCode: statusCode,
		Body:       body,
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}

	if eb.Code != "" {
		apiErr.Code = eb.Code
	}
	switch {
	case eb.Err != "":
		apiErr.Message = eb.Err
	case eb.Message != "":
		apiErr.Message = eb.Message
	}
	apiErr.RequestID = eb.RequestID

	return apiErr
}
