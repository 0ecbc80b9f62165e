package agv

import (
	"errors"
	"fmt"
)

// Rejection reasons.
const (
	ReasonBusy    = "busy"
	ReasonInvalid = "invalid"
	ReasonPatrol  = "patrol"
	ReasonRemote  = "remote"
	ReasonPoll    = "poll"
)

// TransportError is a failed network call or a reply that is not JSON.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("agv %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a well-formed reply that lacks required fields.
type ProtocolError struct {
	Field  string
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("agv protocol: missing %s", e.Field)
	}
	return fmt.Sprintf("agv protocol: %s: %s", e.Field, e.Detail)
}

// RejectedError is a command refused locally or by the device.
type RejectedError struct {
	Reason string
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return "rejected: " + e.Reason
	}
	return fmt.Sprintf("rejected (%s): %s", e.Reason, e.Detail)
}

// Reject builds a RejectedError.
func Reject(reason, format string, args ...any) *RejectedError {
	return &RejectedError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsRejected reports whether err is a rejection, and with which reason.
func IsRejected(err error) (string, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
