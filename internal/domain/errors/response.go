package errors

// Response is the unified JSON envelope returned by the error middleware.
type Response struct {
	Success bool       `json:"success"`
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo carries the business error code and optional details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Details string `json:"details"`
}
