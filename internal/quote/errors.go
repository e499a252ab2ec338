package quote

import (
	"errors"
	"fmt"
)

// Reason classifies a per-source quote failure. These are expected,
// non-fatal outcomes: the optimizer counts them and moves on.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonUnsupported Reason = "unsupported"
	ReasonNoLiquidity Reason = "no_liquidity"
	ReasonProtocol    Reason = "protocol_error"
)

type Error struct {
	Protocol Protocol
	Reason   Reason
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Protocol, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Protocol, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func Failure(p Protocol, r Reason, err error) *Error {
	return &Error{Protocol: p, Reason: r, Err: err}
}

// ReasonOf extracts the failure reason from an error chain. The second
// return is false for errors that are not quote failures (context errors
// from a dead parent, programming errors).
func ReasonOf(err error) (Reason, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Reason, true
	}
	return "", false
}
