package service

import (
	"errors"
	"fmt"
)

// ErrNoRecipients indicates a send attempt that names neither an existing
// thread nor any recipients.
var ErrNoRecipients = errors.New("no recipients and no thread id")

// OperationError wraps a failure of a composite chat operation with the
// operation name. The underlying transport cause is preserved for
// errors.Is/As.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("chat operation %s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
