// ABOUTME: JSON response helpers and wire representations for users and messages
// ABOUTME: Passwords and hashes never appear in serialized output

package server

import (
	"encoding/json"
	"net/http"

	"github.com/fireside-chat/fireside/internal/store"
)

// timestampLayout is the wire format for timestamps.
const timestampLayout = "2006-01-02 15:04:05"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type userJSON struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsOnline  bool   `json:"is_online"`
}

type messageJSON struct {
	ID          int64    `json:"id"`
	UserID      int64    `json:"user_id"`
	MessageText string   `json:"message_text"`
	Timestamp   string   `json:"timestamp"`
	User        userJSON `json:"user"`
}

func toUserJSON(u *store.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Login:     u.Login,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsOnline:  u.IsOnline,
	}
}

func toUsersJSON(users []*store.User) []userJSON {
	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toUserJSON(u))
	}
	return out
}

func toMessagesJSON(messages []*store.MessageWithAuthor) []messageJSON {
	out := make([]messageJSON, 0, len(messages))
	for _, m := range messages {
		author := m.Author
		out = append(out, messageJSON{
			ID:          m.ID,
			UserID:      m.UserID,
			MessageText: m.Text,
			Timestamp:   m.Timestamp.Format(timestampLayout),
			User:        toUserJSON(&author),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
