// Package store provides persistent storage for fireside using SQLite.
//
// # Architecture
//
// SQLiteStore implements the Store interface in a single struct. It owns
// the only database handle in the process; the session facade composes its
// operations and nothing else touches the file.
//
// # Data Models
//
//   - User: Account with unique login, bcrypt password digest, and presence flag
//   - AuthToken: Live session storing the SHA-256 digest of a bearer token
//   - Message: Append-only chat message with store-assigned timestamp
//   - MessageWithAuthor: Query-time view joining a message with a read-time
//     snapshot of its author (never persisted)
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Sessions
//
// Opening a store always calls ResetSessions: auth_tokens is recreated and
// every presence flag is zeroed, so a process restart forces a global
// logout. Close performs the same teardown. CreateSession and DeleteSession
// move the token row and the presence flag together in one transaction, so
// a partial failure cannot leave them inconsistent.
//
// # Error Handling
//
// Every operation returns a typed *Error carrying a Kind, a message, and a
// client-visible code. Package sentinels (ErrDuplicateLogin, ErrUnknownUser,
// ErrInvalidCredential, ErrUnknownToken) compare by Kind via errors.Is.
// Engine faults are wrapped as KindStorage; nothing escapes untyped.
//
// All methods accept context.Context for cancellation support.
package store
