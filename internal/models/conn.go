package models

// Conn is the transport-agnostic handle the protocol engine addresses
// participants through. The websocket gateway provides the real
// implementation; tests substitute in-memory fakes.
type Conn interface {
	// ConnID identifies this particular socket, not the user behind it.
	// Reconnects under the same user identity produce a new ConnID.
	ConnID() string

	// Send queues an event for delivery. It reports false when the
	// connection is closed or its send buffer is full; delivery to a live
	// room is best-effort either way.
	Send(ev Event) bool

	// Close terminates the connection. The reason travels in the close
	// frame for clients that surface it.
	Close(reason string)
}

// ConnectMeta is the query metadata a client presents when opening a
// connection. All five session fields must be set for session logic to
// run; a connection with no session id is an invitation-only peer.
type ConnectMeta struct {
	SessionID   string
	UserID      string
	Role        Role
	StationID   string
	DisplayName string
}

// WantsSession reports whether the client asked to join a session at all.
func (m ConnectMeta) WantsSession() bool {
	return m.SessionID != ""
}

// Complete reports whether every field required for a session join is set.
func (m ConnectMeta) Complete() bool {
	return m.SessionID != "" && m.UserID != "" && m.Role != "" &&
		m.StationID != "" && m.DisplayName != ""
}
