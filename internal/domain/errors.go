package domain

import (
	"errors"
	"fmt"
)

// WebSocket close codes used by the relay.
const (
	CloseGoingAway       = 1001
	CloseUnsupportedData = 1003
	ClosePolicyViolation = 1008
)

var (
	ErrMalformedFrame  = errors.New("malformed frame")
	ErrInvalidIdentify = errors.New("invalid identify payload")
	ErrReidentify      = errors.New("connection already identified")
	ErrProducerTaken   = errors.New("producer slot already occupied")

	ErrNotProducer   = errors.New("sender is not the current producer")
	ErrEmptyCode     = errors.New("code must be a non-empty string")
	ErrNotIdentified = errors.New("connection has not identified")

	ErrDraining     = errors.New("relay is shutting down")
	ErrHubStopped   = errors.New("relay hub stopped")
	ErrNotConnected = errors.New("not connected to relay")
)

// ProtocolError is a connection-local violation that ends the connection
// with CloseCode. It never affects other connections.
type ProtocolError struct {
	Err       error
	CloseCode int
	Detail    string
}

// NewProtocolError wraps one of the protocol sentinels and picks its close code.
func NewProtocolError(err error, detail string) *ProtocolError {
	code := ClosePolicyViolation
	if errors.Is(err, ErrMalformedFrame) {
		code = CloseUnsupportedData
	}
	return &ProtocolError{Err: err, CloseCode: code, Detail: detail}
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Reason is a stable label for logs and metrics.
func (e *ProtocolError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrMalformedFrame):
		return "malformed_frame"
	case errors.Is(e.Err, ErrInvalidIdentify):
		return "invalid_identify"
	case errors.Is(e.Err, ErrReidentify):
		return "reidentify"
	case errors.Is(e.Err, ErrProducerTaken):
		return "producer_taken"
	default:
		return "other"
	}
}
