package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserID is the backend's opaque user id. It decodes from a JSON string or
// number and is kept in its textual form.
type UserID string

// UnmarshalJSON accepts "42", 42 and null.
func (id *UserID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// User is the account returned by the auth backend.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// Credentials is the payload for register and login.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// AuthResponse is the body returned by register and login.
// Some deployments put the user id at the top level instead of under "user".
type AuthResponse struct {
	Token string `json:"token"`
	ID    UserID `json:"id,omitempty"`
	User  User   `json:"user"`
}

// Account returns the user, falling back to the top-level id.
func (r AuthResponse) Account() User {
	u := r.User
	if u.ID == "" {
		u.ID = r.ID
	}
	return u
}
