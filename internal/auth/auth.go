package auth

import (
	"context"
	stderrors "errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/kiosk/internal/errors"
)

// CredentialStore verifies an admin login. Verify returns an Unauthenticated
// error when the pair does not match.
type CredentialStore interface {
	Verify(ctx context.Context, username, password string) error
}

// StaticStore holds bcrypt hashes keyed by username, usually loaded from config.
// It has no lockout or rate limiting.
type StaticStore struct {
	hashes map[string][]byte
	// dummy is compared against when the username is unknown so both paths cost a bcrypt round.
	dummy []byte
}

func NewStaticStore(users map[string]string) (*StaticStore, error) {
	s := &StaticStore{hashes: make(map[string][]byte, len(users))}

	for u, h := range users {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("auth: user %q: invalid bcrypt hash: %w", u, err)
		}
		s.hashes[u] = []byte(h)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	s.dummy = dummy

	return s, nil
}

func (s *StaticStore) Verify(_ context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.InvalidArgument("username and password are required")
	}

	h, ok := s.hashes[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return invalidCredentials()
	}

	err := bcrypt.CompareHashAndPassword(h, []byte(password))
	if stderrors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return invalidCredentials()
	}
	if err != nil {
		return errors.Internal(err)
	}

	return nil
}

func invalidCredentials() error {
	return errors.New(errors.CodeUnauthenticated, errors.WithMessagef("invalid username or password"))
}

