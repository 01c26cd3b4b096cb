// ABOUTME: User relation operations: registration, lookup, listing, password verification
// ABOUTME: Passwords are stored as bcrypt digests, never as plaintext

package store

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, login, password_hash, first_name, last_name, is_online`

// CreateUser registers a new account. The password is hashed before it is
// stored. Returns ErrDuplicateLogin if the login is already taken. Field
// validation (length, charset) is the caller's responsibility.
func (s *SQLiteStore) CreateUser(ctx context.Context, login, password, firstName, lastName string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return storageError("hashing password", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (login, password_hash, first_name, last_name, is_online)
		VALUES (?, ?, ?, ?, 0)
	`, login, hash, firstName, lastName)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &Error{
				Kind:    KindDuplicateLogin,
				Message: "login " + login + " already taken",
				Code:    ErrDuplicateLogin.Code,
			}
		}
		return storageError("inserting user", err)
	}

	s.logger.Info("user registered", "login", login)
	return nil
}

// GetUserByLogin retrieves a user by exact, case-sensitive login match.
// Returns ErrUnknownUser when no row matches; absence is not a storage fault.
func (s *SQLiteStore) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE login = ?
	`, login)
	return scanUser(row)
}

// GetUserByID retrieves a user by id. Returns ErrUnknownUser if absent.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// ListUsers returns every registered user ordered by id.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// ListOnlineUsers returns users whose presence flag is set, ordered by id.
func (s *SQLiteStore) ListOnlineUsers(ctx context.Context) ([]*User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE is_online = 1 ORDER BY id`)
}

// CountUsers returns the number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, storageError("counting users", err)
	}
	return count, nil
}

func (s *SQLiteStore) queryUsers(ctx context.Context, query string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageError("querying users", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsOnline); err != nil {
			return nil, storageError("scanning user row", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterating user rows", err)
	}
	return users, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsOnline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, storageError("querying user", err)
	}
	return &u, nil
}

// HashPassword produces a bcrypt digest of the given plaintext.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether candidate matches the user's stored digest.
func (u *User) VerifyPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(candidate)) == nil
}
