package mesh

import (
	"errors"
	"fmt"
)

var (
	ErrClosed       = errors.New("coordinator closed")
	ErrNoRoom       = errors.New("not in a room")
	ErrInRoom       = errors.New("already in a room")
	ErrNotCreator   = errors.New("only the room creator may decide")
	ErrRejoinLocked = errors.New("rejoin locked after kick")
	ErrUnknownPeer  = errors.New("unknown peer")
)

// CoordError scopes a failure to one operation and, where relevant, one
// peer. Failures scoped to a peer never take the coordinator down.
type CoordError struct {
	Op   string
	Peer string
	Err  error
}

func (e *CoordError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CoordError) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *CoordError {
	return &CoordError{Op: op, Err: err}
}

func newPeerError(op, peer string, err error) *CoordError {
	return &CoordError{Op: op, Peer: peer, Err: err}
}
