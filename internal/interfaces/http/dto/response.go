package dto

import "net/http"

// Error codes, ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeInvalidDate = "ERR_VALIDATION_FORMAT" // report date is not YYYY-MM-DD
	ErrCodeNotFound    = "ERR_NOT_FOUND"
	ErrCodeUnavailable = "ERR_SERVICE_UNAVAILABLE" // a report store cannot be reached
)

// Response is the envelope of every API response. Error responses echo
// the request ID so that a failed report read can be found in the logs.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the error half of the envelope
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK wraps data in a successful envelope
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail returns the status for code and the error envelope to send with it
func Fail(code, message, requestID string) (int, Response) {
	return StatusFor(code), Response{
		Error:     &ErrorInfo{Code: code, Message: message},
		RequestID: requestID,
	}
}

// Unhealthy wraps a health report whose dependencies are not all up
func Unhealthy(data any, requestID string) (int, Response) {
	return http.StatusServiceUnavailable, Response{Data: data, RequestID: requestID}
}

// StatusFor maps an error code to its HTTP status; unknown codes are 500
func StatusFor(code string) int {
	switch code {
	case ErrCodeBadRequest, ErrCodeInvalidDate:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
