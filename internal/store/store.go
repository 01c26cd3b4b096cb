// ABOUTME: Store interface, data types and error taxonomy for fireside persistence
// ABOUTME: Defines User, AuthToken, Message structs and the Store interface

package store

import (
	"context"
	"net/http"
	"time"
)

// ErrorKind classifies store errors so callers can map them to behavior
// (and the HTTP layer to status codes) without parsing messages.
type ErrorKind int

const (
	// KindStorage is an engine or IO failure.
	KindStorage ErrorKind = iota
	// KindValidation is malformed input that should have been caught by the caller.
	KindValidation
	// KindDuplicateLogin means the login is already taken.
	KindDuplicateLogin
	// KindUnknownUser means no user matches the given login.
	KindUnknownUser
	// KindInvalidCredential means the password did not match.
	KindInvalidCredential
	// KindUnknownToken means no live session matches the given token.
	KindUnknownToken
)

// Error is the typed result every store operation propagates by value.
// Kind drives control flow, Code is the suggested client-visible status.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    int
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying engine error, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches two store errors by Kind, so sentinel comparison via
// errors.Is works regardless of message or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel errors for each kind. Compare with errors.Is.
var (
	ErrDuplicateLogin    = &Error{Kind: KindDuplicateLogin, Message: "login already taken", Code: http.StatusBadRequest}
	ErrUnknownUser       = &Error{Kind: KindUnknownUser, Message: "no such user", Code: http.StatusBadRequest}
	ErrInvalidCredential = &Error{Kind: KindInvalidCredential, Message: "incorrect password", Code: http.StatusUnauthorized}
	ErrUnknownToken      = &Error{Kind: KindUnknownToken, Message: "unknown auth token", Code: http.StatusUnauthorized}
	ErrValidation        = &Error{Kind: KindValidation, Message: "invalid input", Code: http.StatusUnprocessableEntity}
)

// storageError wraps an engine fault into a KindStorage error.
func storageError(msg string, cause error) *Error {
	return &Error{
		Kind:    KindStorage,
		Message: msg,
		Code:    http.StatusInternalServerError,
		cause:   cause,
	}
}

// User is an account record. PasswordHash is a bcrypt digest; plaintext
// passwords never touch durable storage.
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsOnline     bool
}

// AuthToken is a live session row. Only the SHA-256 hex digest of the
// bearer string is persisted; the plaintext is handed out once at mint time.
type AuthToken struct {
	ID        int64
	UserID    int64
	TokenHash string
}

// Message is a single append-only chat message. Timestamp is assigned by
// the store at insert time and never mutated.
type Message struct {
	ID        int64
	UserID    int64
	Text      string
	Timestamp time.Time
}

// MessageWithAuthor is a query-time view of a message annotated with a
// snapshot of its author as of read time. It is never persisted.
type MessageWithAuthor struct {
	Message
	Author User
}

// Store is the persistence contract the session facade composes. A single
// implementation owns the database handle; nothing else opens a second one.
type Store interface {
	// Users
	CreateUser(ctx context.Context, login, password, firstName, lastName string) error
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	ListOnlineUsers(ctx context.Context) ([]*User, error)
	CountUsers(ctx context.Context) (int, error)

	// Tokens
	GetTokenByPlain(ctx context.Context, plain string) (*AuthToken, error)
	TokenExists(ctx context.Context, plain string) (bool, error)

	// Sessions (transactional: token row and presence flag move together)
	CreateSession(ctx context.Context, userID int64) (string, error)
	DeleteSession(ctx context.Context, plain string) error

	// Messages
	AppendMessage(ctx context.Context, userID int64, text string) error
	CountMessages(ctx context.Context) (int, error)
	ListRecentMessages(ctx context.Context, limit int) ([]*MessageWithAuthor, error)
	ListMessagesAfter(ctx context.Context, afterID int64) ([]*MessageWithAuthor, error)

	// Lifecycle
	Clear(ctx context.Context) error
	Close() error
}
