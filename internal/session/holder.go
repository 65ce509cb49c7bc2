package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/naveenspark/diagrama/pkg/client"
	"github.com/naveenspark/diagrama/pkg/domain"
)

// ErrEmptyToken is returned by Login when the backend handed back no token.
var ErrEmptyToken = errors.New("login response carried no token")

// Verifier checks a token against the auth backend.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*domain.User, error)
}

// Holder is the process session. It is built once at startup with Restore
// and passed to whatever needs to know who is signed in.
type Holder struct {
	store *Store
	sess  domain.Session
}

// Restore builds a Holder from whatever the store holds. The stored token is
// trusted as-is; call Verify to check it against the backend.
func Restore(store *Store) (*Holder, error) {
	sess, err := store.Load()
	if err != nil {
		return &Holder{store: store}, err
	}
	return &Holder{store: store, sess: sess}, nil
}

// Authenticated is true iff a non-empty token is held.
func (h *Holder) Authenticated() bool {
	return h.sess.Authenticated()
}

// User returns the signed-in user, if known.
func (h *Holder) User() *domain.User {
	return h.sess.User
}

// Login persists token and user, then marks the session authenticated.
func (h *Holder) Login(user domain.User, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	sess := domain.Session{Token: token}
	if user.ID != "" || user.Username != "" {
		u := user
		sess.User = &u
	}
	if err := h.store.Save(sess); err != nil {
		return err
	}
	h.sess = sess
	return nil
}

// Logout clears durable storage and the in-memory session. The in-memory
// session is cleared even when the file cannot be removed.
func (h *Holder) Logout() error {
	h.sess = domain.Session{}
	return h.store.Clear()
}

// Verify checks the held token with v. A 401 or 403 logs the session out and
// returns false; transport errors leave the session alone and are returned.
func (h *Holder) Verify(ctx context.Context, v Verifier) (bool, error) {
	if !h.Authenticated() {
		return false, nil
	}
	u, err := v.VerifyToken(ctx, h.sess.Token)
	if err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) || client.IsStatus(err, http.StatusForbidden) {
			if logoutErr := h.Logout(); logoutErr != nil {
				return false, fmt.Errorf("session.Verify: %w", logoutErr)
			}
			return false, nil
		}
		return h.Authenticated(), fmt.Errorf("session.Verify: %w", err)
	}
	if u != nil && h.sess.User == nil && (u.ID != "" || u.Username != "") {
		h.sess.User = u
	}
	return true, nil
}
