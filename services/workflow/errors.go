package workflow

import (
	"errors"
	"fmt"
)

// ErrorCode names the graph invariant a rejected mutation would have broken.
type ErrorCode string

const (
	CodeInvalidConnection ErrorCode = "InvalidConnection"
	CodeDuplicateID       ErrorCode = "DuplicateId"
	CodeUnknownNode       ErrorCode = "UnknownNode"
	CodeUnknownEdge       ErrorCode = "UnknownEdge"
	CodeInvalidNode       ErrorCode = "InvalidNode"
	CodeConfigMismatch    ErrorCode = "ConfigMismatch"
)

// GraphError is returned by every rejected Graph mutation. The graph is left
// unchanged when one is returned.
type GraphError struct {
	Code    ErrorCode
	ID      string
	Message string
}

func (e *GraphError) Error() string {
	switch {
	case e.ID != "" && e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.ID, e.Message)
	case e.ID != "":
		return fmt.Sprintf("%s: %s", e.Code, e.ID)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	default:
		return string(e.Code)
	}
}

// Is matches any GraphError with the same code, so callers can use the
// sentinels below with errors.Is.
func (e *GraphError) Is(target error) bool {
	var other *GraphError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

var (
	ErrInvalidConnection = &GraphError{Code: CodeInvalidConnection}
	ErrDuplicateID       = &GraphError{Code: CodeDuplicateID}
	ErrUnknownNode       = &GraphError{Code: CodeUnknownNode}
	ErrUnknownEdge       = &GraphError{Code: CodeUnknownEdge}
	ErrInvalidNode       = &GraphError{Code: CodeInvalidNode}
	ErrConfigMismatch    = &GraphError{Code: CodeConfigMismatch}

	// ErrWorkflowNotFound is returned by stores when no workflow has the requested id.
	ErrWorkflowNotFound = errors.New("workflow not found")
)

func graphErr(code ErrorCode, id, format string, args ...any) *GraphError {
	return &GraphError{Code: code, ID: id, Message: fmt.Sprintf(format, args...)}
}
