package mapping

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrSpecValidation indicates the spec is internally inconsistent.
	ErrSpecValidation = errors.New("spec validation error")

	// ErrCallArgument indicates a call did not match the operation's parameters.
	ErrCallArgument = errors.New("call argument error")

	// ErrResponseMapping indicates no response spec matched a status code.
	ErrResponseMapping = errors.New("response mapping error")

	// ErrSchema indicates a value did not conform to its schema.
	ErrSchema = errors.New("schema error")

	// ErrUnsupportedResponse indicates a transport handed back a response
	// that does not implement Response.
	ErrUnsupportedResponse = errors.New("unsupported response type")
)

// SpecValidationError is raised while building params or operations from a
// spec that is internally inconsistent.
type SpecValidationError struct {
	// Pointer locates the offending node, e.g. "#/paths/~1pet/get/parameters/0".
	Pointer string
	Message string
	Cause   error
}

func (e *SpecValidationError) Error() string {
	msg := "spec validation error"
	if e.Pointer != "" {
		msg += " at " + e.Pointer
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SpecValidationError) Unwrap() error { return e.Cause }

func (e *SpecValidationError) Is(target error) bool { return target == ErrSpecValidation }

// ArgumentReason says why a call's arguments were rejected.
type ArgumentReason string

const (
	UnknownParameter ArgumentReason = "unknown parameter"
	MissingParameter ArgumentReason = "missing required parameter"
	InvalidValue     ArgumentReason = "invalid value"
)

// CallArgumentError reports a call whose arguments do not match the
// operation's declared parameters. It is raised before any I/O happens.
type CallArgumentError struct {
	OperationID string
	Param       string
	Reason      ArgumentReason
	Cause       error
}

func (e *CallArgumentError) Error() string {
	var msg string
	switch e.Reason {
	case UnknownParameter:
		msg = fmt.Sprintf("%s does not have parameter %s", e.OperationID, e.Param)
	case MissingParameter:
		msg = fmt.Sprintf("%s is a required parameter of %s", e.Param, e.OperationID)
	default:
		msg = fmt.Sprintf("%s: parameter %s: %s", e.OperationID, e.Param, e.Reason)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CallArgumentError) Unwrap() error { return e.Cause }

func (e *CallArgumentError) Is(target error) bool { return target == ErrCallArgument }

// ResponseMappingError reports a status code with no matching response spec
// and no default.
type ResponseMappingError struct {
	OperationID string
	StatusCode  int
}

func (e *ResponseMappingError) Error() string {
	return fmt.Sprintf("response specification matching http status_code %d not found for %s; "+
		"either add a response specification for the status_code or use a `default` response",
		e.StatusCode, e.OperationID)
}

func (e *ResponseMappingError) Is(target error) bool { return target == ErrResponseMapping }

// SchemaError reports a value that does not conform to its schema.
type SchemaError struct {
	// Op is "unmarshal" or "marshal".
	Op string
	// Path is the dotted location inside the value, e.g. "Pet.category.id".
	Path    string
	Message string
	Cause   error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" error")
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Cause }

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// UnsupportedResponseError reports a transport response without a Response adapter.
type UnsupportedResponseError struct {
	Type string
}

func (e *UnsupportedResponseError) Error() string {
	return fmt.Sprintf("unsupported response of type %s: wrap it in a mapping.Response adapter", e.Type)
}

func (e *UnsupportedResponseError) Is(target error) bool { return target == ErrUnsupportedResponse }
