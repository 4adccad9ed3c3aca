package session

import (
	"errors"

	"github.com/openpredict/termfeed/internal/model"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	State            model.ConnState
	ConnID           string
	MessagesReceived int64
	DecodeErrors     int64
	Reconnects       int64
	LatencyMillis    int64
	HasLatency       bool
}
