package forecast

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of forecast failure.
type ErrorCode string

const (
	CodeInvalidSnapshot      ErrorCode = "INVALID_SNAPSHOT"
	CodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	CodeComputationTimeout   ErrorCode = "COMPUTATION_TIMEOUT"
)

// Error is returned for every failure of the forecaster.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func invalidSnapshot(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidSnapshot, Message: fmt.Sprintf(format, args...)}
}

func invalidConfiguration(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidConfiguration, Message: fmt.Sprintf(format, args...)}
}

func computationTimeout(cause error) *Error {
	return &Error{Code: CodeComputationTimeout, Message: "simulation did not finish in time", Cause: cause}
}

func hasCode(err error, code ErrorCode) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Code == code
}

// IsInvalidSnapshot reports whether err was caused by out-of-domain input.
func IsInvalidSnapshot(err error) bool { return hasCode(err, CodeInvalidSnapshot) }

// IsInvalidConfiguration reports whether err was caused by bad simulation parameters.
func IsInvalidConfiguration(err error) bool { return hasCode(err, CodeInvalidConfiguration) }

// IsComputationTimeout reports whether the simulation was aborted by a deadline.
func IsComputationTimeout(err error) bool { return hasCode(err, CodeComputationTimeout) }
