package client

import (
	"errors"
	"fmt"
)

// ErrUnknownOperation is matched by UnknownOperationError.
var ErrUnknownOperation = errors.New("unknown operation")

// UnknownOperationError reports a Call for an id the spec does not define.
type UnknownOperationError struct {
	OperationID string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.OperationID)
}

func (e *UnknownOperationError) Is(target error) bool { return target == ErrUnknownOperation }
