package sdk

import (
	"errors"
	"fmt"
)

// ErrCreateQuery is returned when a query cannot be built
var ErrCreateQuery = errors.New("failed to create query")

// Result is the SDK's status code for a completed operation
type Result int

const (
	ResultOK                 Result = 1
	ResultFail               Result = 2
	ResultNoConnection       Result = 3
	ResultInvalidParam       Result = 8
	ResultFileNotFound       Result = 9
	ResultBusy               Result = 10
	ResultAccessDenied       Result = 15
	ResultTimeout            Result = 16
	ResultServiceUnavailable Result = 20
	ResultLimitExceeded      Result = 25
	ResultRateLimitExceeded  Result = 84
)

var resultNames = map[Result]string{
	ResultOK:                 "ok",
	ResultFail:               "generic failure",
	ResultNoConnection:       "no connection",
	ResultInvalidParam:       "invalid parameter",
	ResultFileNotFound:       "file not found",
	ResultBusy:               "busy",
	ResultAccessDenied:       "access denied",
	ResultTimeout:            "timeout",
	ResultServiceUnavailable: "service unavailable",
	ResultLimitExceeded:      "limit exceeded",
	ResultRateLimitExceeded:  "rate limit exceeded",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result %d", int(r))
}

// Error is a failure reported by the SDK for an in-flight operation
type Error struct {
	Result  Result
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("steam error: %s", e.Result)
	}
	return fmt.Sprintf("steam error: %s: %s", e.Result, e.Message)
}

// NewError builds an Error for a result code
func NewError(result Result, message string) *Error {
	return &Error{Result: result, Message: message}
}
