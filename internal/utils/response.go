package utils

import "time"

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, errorKind string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     message,
		ErrorKind: errorKind,
		Timestamp: time.Now(),
	}
}

func ErrorResponseWithData(message, errorKind string, data interface{}) APIResponse {
	resp := ErrorResponse(message, errorKind)
	resp.Data = data
	return resp
}
