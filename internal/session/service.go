// ABOUTME: Session facade - the only component the HTTP layer talks to
// ABOUTME: Composes credential, token, presence and message operations over one store

package session

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/fireside-chat/fireside/internal/store"
)

// dummyHash is a bcrypt digest compared against when the login does not
// exist, so lookup failures and password mismatches take similar time.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Service composes the store operations into the session-level contract.
// It is the exclusive owner of the store handle; callers exchange plain
// values and typed errors across this boundary, never shared state.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a session service over the given store.
func New(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "session"),
	}
}

// Register creates a new account. The password is hashed before storage.
// Returns ErrDuplicateLogin if the login is already taken.
func (s *Service) Register(ctx context.Context, login, password, firstName, lastName string) error {
	return s.store.CreateUser(ctx, login, password, firstName, lastName)
}

// Login verifies credentials, mints a bearer token and flips the user
// online. Returns the plaintext token exactly once. Logging in while
// already online is not rejected; it simply mints another token.
func (s *Service) Login(ctx context.Context, login, password string) (string, error) {
	user, err := s.store.GetUserByLogin(ctx, login)
	if errors.Is(err, store.ErrUnknownUser) {
		// Burn a bcrypt comparison so unknown logins are not
		// distinguishable from bad passwords by timing.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return "", store.ErrUnknownUser
	}
	if err != nil {
		return "", err
	}

	if !user.VerifyPassword(password) {
		return "", store.ErrInvalidCredential
	}

	token, err := s.store.CreateSession(ctx, user.ID)
	if err != nil {
		return "", err
	}

	s.logger.Info("user signed in", "login", login)
	return token, nil
}

// Logout revokes the session matching the token and flips the owning user
// offline. Returns ErrUnknownToken if no session matches.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return err
	}
	s.logger.Info("user signed out")
	return nil
}

// WhoAmI resolves a token to its owning user.
// Returns ErrUnknownToken if the token does not resolve.
func (s *Service) WhoAmI(ctx context.Context, token string) (*store.User, error) {
	tok, err := s.store.GetTokenByPlain(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, tok.UserID)
	if errors.Is(err, store.ErrUnknownUser) {
		// Token rows cascade-delete with their owner, so a dangling
		// token means the session is gone too.
		return nil, store.ErrUnknownToken
	}
	return user, err
}

// TokenExists reports whether the token matches a live session.
func (s *Service) TokenExists(ctx context.Context, token string) (bool, error) {
	return s.store.TokenExists(ctx, token)
}

// ListUsers returns every registered user.
func (s *Service) ListUsers(ctx context.Context) ([]*store.User, error) {
	return s.store.ListUsers(ctx)
}

// ListOnlineUsers returns users currently marked online.
func (s *Service) ListOnlineUsers(ctx context.Context) ([]*store.User, error) {
	return s.store.ListOnlineUsers(ctx)
}

// CountUsers returns the number of registered users.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	return s.store.CountUsers(ctx)
}

// SendMessage resolves the token and appends a message for its owner.
func (s *Service) SendMessage(ctx context.Context, token, text string) error {
	tok, err := s.store.GetTokenByPlain(ctx, token)
	if err != nil {
		return err
	}
	return s.store.AppendMessage(ctx, tok.UserID, text)
}

// ListMessages returns the most recent limit messages in chronological
// order, each with a read-time author snapshot.
func (s *Service) ListMessages(ctx context.Context, limit int) ([]*store.MessageWithAuthor, error) {
	return s.store.ListRecentMessages(ctx, limit)
}

// ListMessagesAfter returns all messages with id strictly greater than
// afterID, in chronological order.
func (s *Service) ListMessagesAfter(ctx context.Context, afterID int64) ([]*store.MessageWithAuthor, error) {
	return s.store.ListMessagesAfter(ctx, afterID)
}

// CountMessages returns the total message count.
func (s *Service) CountMessages(ctx context.Context) (int, error) {
	return s.store.CountMessages(ctx)
}

// Clear wipes all relations. Test isolation only.
func (s *Service) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Close tears down live sessions and releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}
