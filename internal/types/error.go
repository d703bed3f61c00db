package types

import (
	"fmt"
	"net/http"
)

// CustomError is an authorization or request failure carrying its own HTTP status.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// Forbidden is returned when no role of the caller admits the request.
func Forbidden(cause error) *CustomError {
	return &CustomError{
		Code:    http.StatusForbidden,
		Message: fmt.Sprintf("Not authorized: %v", cause),
		Type:    "authorization",
	}
}
