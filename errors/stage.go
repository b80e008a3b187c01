package errors

import (
	stderrors "errors"
	"fmt"
)

// Stage identifies which step of a fetch failed.
type Stage int

const (
	ConnectionError Stage = iota
	SendError
	ReceiveError
)

// String returns the operator-facing stage name.
func (s Stage) String() string {
	switch s {
	case ConnectionError:
		return "connect"
	case SendError:
		return "send"
	case ReceiveError:
		return "receive"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Error lets a bare Stage be used as an errors.Is target.
func (s Stage) Error() string {
	switch s {
	case ConnectionError:
		return "ConnectionError"
	case SendError:
		return "SendError"
	case ReceiveError:
		return "ReceiveError"
	default:
		return fmt.Sprintf("Unknown stage error: %d", int(s))
	}
}

// FetchError is returned by every fetch operation that fails. Err is usually a
// transport *Error.
type FetchError struct {
	Stage Stage
	Err   error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s failed: %v", e.Stage.Error(), e.Stage.String(), e.Err)
	}
	return fmt.Sprintf("%s: %s failed", e.Stage.Error(), e.Stage.String())
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	s, ok := target.(Stage)
	return ok && s == e.Stage
}

// NewFetchError wraps err with the stage it happened in.
func NewFetchError(stage Stage, err error) *FetchError {
	return &FetchError{Stage: stage, Err: err}
}

// StageOf returns the stage of the first FetchError in err's chain.
func StageOf(err error) (Stage, bool) {
	var fe *FetchError
	if stderrors.As(err, &fe) {
		return fe.Stage, true
	}
	return 0, false
}
