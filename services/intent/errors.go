package intent

import "fmt"

// ExtractionError means the model produced no actionable function call.
type ExtractionError struct {
	Code    string
	Message string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewExtractionError(msg string) error {
	return &ExtractionError{
		Code:    "intentExtractionError",
		Message: msg,
	}
}
