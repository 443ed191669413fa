package app

import (
	"errors"
	"fmt"
)

// HandleError marks a notification as unprocessable for data reasons: a
// forged signature, a persist failure tied to the message contents. Transport
// callers use it to decide against redelivery; anything else is treated as an
// infrastructure problem and may be retried.
type HandleError struct {
	MessageID string
	Err       error
}

func (e *HandleError) Error() string {
	return fmt.Sprintf("notification handling failed for message %s: %v", e.MessageID, e.Err)
}

func (e *HandleError) Unwrap() error {
	return e.Err
}

// NewHandleError wraps err with the originating message id.
func NewHandleError(messageID string, err error) *HandleError {
	return &HandleError{MessageID: messageID, Err: err}
}

// IsHandleError reports whether err is (or wraps) a HandleError.
func IsHandleError(err error) bool {
	var he *HandleError
	return errors.As(err, &he)
}
