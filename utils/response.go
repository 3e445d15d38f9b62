package utils

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

const (
	ErrorCodeValidation   = "VALIDATION_ERROR"
	ErrorCodeUnauthorized = "UNAUTHORIZED"
	ErrorCodeForbidden    = "FORBIDDEN"
	ErrorCodeNotFound     = "NOT_FOUND"
	ErrorCodeConflict     = "CONFLICT"
	ErrorCodeRateLimited  = "RATE_LIMITED"
	ErrorCodeUnavailable  = "UNAVAILABLE"
	ErrorCodeInternal     = "INTERNAL_ERROR"
)

func NewErrorResponse(code string, message string) ErrorResponse {
	return ErrorResponse{Status: "error", Code: code, Message: message}
}
