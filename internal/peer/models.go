package peer

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ID is the 20 byte identifier a client announces itself with.
type ID [20]byte

// NewID returns a random peer id.
func NewID() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, fmt.Errorf("error generating peer ID: %w", err)
	}
	return id, nil
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// State is the progress of one handshake attempt.
type State int

const (
	StateConnected State = iota
	StateHandshakeSent
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateHandshakeSent:
		return "handshake sent"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
