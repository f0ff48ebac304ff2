package response

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"` // per-field problems on validation failures
}

// Paged wraps a page of results with its total count.
type Paged struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// Success returns a success response wrapping the data
func Success(message string, data interface{}) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Error returns an error response with a user-facing message
func Error(message string) Response {
	return Response{Success: false, Message: message}
}

// Invalid returns an error response listing field problems
func Invalid(message string, fields interface{}) Response {
	return Response{Success: false, Message: message, Errors: fields}
}
