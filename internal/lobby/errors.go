package lobby

import (
	"errors"
	"fmt"
)

// RejectKind classifies a rejected request.
type RejectKind int

const (
	// RejectInvalid is bad input, e.g. an unknown team.
	RejectInvalid RejectKind = iota
	// RejectForbidden is an action the requester may not perform.
	RejectForbidden
	// RejectConflict is an action that does not fit the lobby state.
	RejectConflict
	// RejectNotFound is a requester or target that is not part of the lobby.
	RejectNotFound
)

// Rejection is a validation failure with a user-facing reason.
type Rejection struct {
	Kind   RejectKind
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

func reject(kind RejectKind, format string, args ...any) error {
	return &Rejection{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// AsRejection extracts a Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// ErrLobbyNotFound is returned for requests naming an unknown lobby.
var ErrLobbyNotFound error = &Rejection{Kind: RejectNotFound, Reason: "Lobby not found"}

var (
	errNotMember = &Rejection{Kind: RejectNotFound, Reason: "You're not in this lobby"}
	errDestroyed = &Rejection{Kind: RejectConflict, Reason: "Lobby is destroyed"}
	errPeerGone  = &Rejection{Kind: RejectNotFound, Reason: "Connection closed"}
)
