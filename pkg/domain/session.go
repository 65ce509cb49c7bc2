package domain

// Session is what the client believes about the signed-in user.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Authenticated is true iff a non-empty token is held.
func (s Session) Authenticated() bool {
	return s.Token != ""
}
