package domain

// LocalHandle is the resumable identity a client keeps across reloads.
type LocalHandle struct {
	SessionID     SessionID
	ParticipantID ParticipantID
	IsOwner       bool
}

// Authority is who is acting on a session.
// It is either Anonymous (a local handle) or Authenticated (a principal).
type Authority interface {
	// IsOrganizer reports whether this authority may start the session.
	IsOrganizer(session Session) bool
	sealed()
}

type Anonymous struct {
	Handle LocalHandle
}

func (a Anonymous) IsOrganizer(session Session) bool {
	return a.Handle.SessionID == session.ID && a.Handle.IsOwner
}

func (Anonymous) sealed() {}

type Authenticated struct {
	Principal UserID
	// Handle is set when the principal also joined the session.
	Handle *LocalHandle
}

func (a Authenticated) IsOrganizer(session Session) bool {
	if session.IsOwnedBy(a.Principal) {
		return true
	}
	return a.Handle != nil && Anonymous{Handle: *a.Handle}.IsOrganizer(session)
}

func (Authenticated) sealed() {}

// HandleOf returns the local handle carried by an authority, if any.
func HandleOf(a Authority) (LocalHandle, bool) {
	switch v := a.(type) {
	case Anonymous:
		return v.Handle, true
	case Authenticated:
		if v.Handle != nil {
			return *v.Handle, true
		}
	}
	return LocalHandle{}, false
}

// PrincipalOf returns the authenticated principal, if any.
func PrincipalOf(a Authority) (UserID, bool) {
	if v, ok := a.(Authenticated); ok {
		return v.Principal, true
	}
	return "", false
}
