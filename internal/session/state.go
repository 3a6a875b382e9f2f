package session

import (
	"errors"
	"time"
)

// State is the lifecycle state of the WhatsApp session
type State int

const (
	Uninitialized State = iota
	Initializing
	AwaitingPairing
	Authenticated
	Ready
	Disconnected
	Faulted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case AwaitingPairing:
		return "awaiting_pairing"
	case Authenticated:
		return "authenticated"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

var (
	// ErrNotReady is returned by data-plane calls outside the Ready state
	ErrNotReady = errors.New("session is not ready")
	// ErrStopped is returned once the manager's Run loop has exited
	ErrStopped = errors.New("session manager stopped")
)

// Snapshot is a read-only copy of the session state
type Snapshot struct {
	State      State
	ReadyAt    time.Time // zero unless Ready
	LastError  string
	Generation uint64
}

// Ready reports whether the snapshot was taken in the Ready state
func (s Snapshot) Ready() bool {
	return s.State == Ready
}
