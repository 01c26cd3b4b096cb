// ABOUTME: Token relation operations: minting, lookup, revocation
// ABOUTME: Bearer strings are random alphanumerics stored only as SHA-256 digests

package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
)

// tokenAlphabet is the 62-symbol alphabet bearer tokens are drawn from.
const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// tokenLength is the length of a plaintext bearer token.
const tokenLength = 64

// mintAttempts bounds the regenerate-on-collision loop. The UNIQUE
// constraint on token_hash is the actual correctness guarantor; the loop
// only makes collisions statistically irrelevant.
const mintAttempts = 5

// generateToken returns a random bearer string over the token alphabet.
// Bytes at or above the largest multiple of the alphabet size are
// rejected, so every symbol is drawn with equal probability.
func generateToken() (string, error) {
	const limit = 256 - 256%len(tokenAlphabet)

	out := make([]byte, 0, tokenLength)
	buf := make([]byte, tokenLength)
	for len(out) < tokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == tokenLength {
				break
			}
		}
	}
	return string(out), nil
}

// hashToken returns the hex-encoded SHA-256 digest of a plaintext token.
// Deterministic digests allow token lookup without persisting plaintext.
func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// GetTokenByPlain hashes the plaintext token and looks up the matching row.
// Returns ErrUnknownToken if none matches.
func (s *SQLiteStore) GetTokenByPlain(ctx context.Context, plain string) (*AuthToken, error) {
	var tok AuthToken
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash FROM auth_tokens WHERE token_hash = ?
	`, hashToken(plain)).Scan(&tok.ID, &tok.UserID, &tok.TokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownToken
	}
	if err != nil {
		return nil, storageError("querying token", err)
	}
	return &tok, nil
}

// TokenExists reports whether a live session matches the given plaintext token.
func (s *SQLiteStore) TokenExists(ctx context.Context, plain string) (bool, error) {
	_, err := s.GetTokenByPlain(ctx, plain)
	if errors.Is(err, ErrUnknownToken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateSession mints a bearer token for the user and flips their presence
// flag to online, both in a single transaction. The plaintext token is
// returned to the caller exactly once; only its digest is retained.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID int64) (string, error) {
	var plain string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var tokenHash string

		// Regenerate on collision, bounded. A duplicate that slips past
		// the check still fails the UNIQUE constraint at insert below.
		for attempt := 0; attempt < mintAttempts; attempt++ {
			candidate, err := generateToken()
			if err != nil {
				return storageError("generating token", err)
			}
			hash := hashToken(candidate)

			var exists int
			err = tx.QueryRowContext(ctx, `
				SELECT 1 FROM auth_tokens WHERE token_hash = ?
			`, hash).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				plain, tokenHash = candidate, hash
				break
			}
			if err != nil {
				return storageError("checking token uniqueness", err)
			}
		}
		if tokenHash == "" {
			return storageError("minting token", errors.New("exhausted regeneration attempts"))
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO auth_tokens (user_id, token_hash) VALUES (?, ?)
		`, userID, tokenHash); err != nil {
			return storageError("inserting token", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET is_online = 1 WHERE id = ?
		`, userID); err != nil {
			return storageError("setting user online", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("session created", "user_id", userID)
	return plain, nil
}

// DeleteSession revokes the session matching the plaintext token and flips
// the owning user's presence flag to offline, both in a single transaction.
// Returns ErrUnknownToken if no session matches; nothing changes in that case.
func (s *SQLiteStore) DeleteSession(ctx context.Context, plain string) error {
	tokenHash := hashToken(plain)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var userID int64
		err := tx.QueryRowContext(ctx, `
			SELECT user_id FROM auth_tokens WHERE token_hash = ?
		`, tokenHash).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnknownToken
		}
		if err != nil {
			return storageError("querying token", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET is_online = 0 WHERE id = ?
		`, userID); err != nil {
			return storageError("setting user offline", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM auth_tokens WHERE token_hash = ?
		`, tokenHash); err != nil {
			return storageError("deleting token", err)
		}

		s.logger.Debug("session deleted", "user_id", userID)
		return nil
	})
	return err
}
