package models

// ClientState is the durable per-device state kept next to the local habits
type ClientState struct {
	GuestMode    bool   `json:"guest_mode"`    // explicitly chose to continue without signing in
	SessionScope string `json:"session_scope"` // scope of the signed-in session, empty when signed out
}

// SignedIn reports whether a session scope is recorded.
func (s ClientState) SignedIn() bool {
	return s.SessionScope != ""
}
