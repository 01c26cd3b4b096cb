// ABOUTME: Tests for the HTTP layer over a real store-backed session facade
// ABOUTME: Covers route statuses, auth enforcement, error bodies, and JSON shapes

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fireside-chat/fireside/internal/session"
	"github.com/fireside-chat/fireside/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	sessions := session.New(st, nil)
	t.Cleanup(func() { _ = sessions.Close() })

	srv := New(sessions, nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	ts := httptest.NewServer(srv.Handler(mux))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(AuthTokenHeader, token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(AuthTokenHeader, token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// registerAndLogin creates an account and returns its bearer token.
func registerAndLogin(t *testing.T, ts *httptest.Server, login string) string {
	t.Helper()

	resp := postJSON(t, ts, "/api/auth/register", "", map[string]string{
		"login":      login,
		"password":   "secret",
		"first_name": login,
		"last_name":  "Test",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/auth/login", "", map[string]string{
		"login":    login,
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	token, ok := body["auth_token"].(string)
	require.True(t, ok, "login response missing auth_token")
	return token
}

func TestAlive(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts, "/api/alive", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "online", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRegister_Validation(t *testing.T) {
	ts := newTestServer(t)

	// Missing fields
	resp := postJSON(t, ts, "/api/auth/register", "", map[string]string{
		"login": "alice",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Unprocessable Entity", body["error"])
	assert.NotEmpty(t, body["message"])

	// Login too short
	resp = postJSON(t, ts, "/api/auth/register", "", map[string]string{
		"login":      "ab",
		"password":   "secret",
		"first_name": "A",
		"last_name":  "B",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// Malformed body
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/auth/register", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	rawResp, err := ts.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, rawResp.StatusCode)
	rawResp.Body.Close()
}

func TestRegister_DuplicateLogin(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts, "alice")

	resp := postJSON(t, ts, "/api/auth/register", "", map[string]string{
		"login":      "alice",
		"password":   "other",
		"first_name": "Other",
		"last_name":  "Person",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Bad Request", body["error"])
	assert.Contains(t, body["message"], "alice")
}

func TestLogin_Failures(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts, "alice")

	// Unknown login
	resp := postJSON(t, ts, "/api/auth/login", "", map[string]string{
		"login":    "nobody",
		"password": "secret",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Wrong password
	resp = postJSON(t, ts, "/api/auth/login", "", map[string]string{
		"login":    "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckToken(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice")

	resp := postJSON(t, ts, "/api/check_token", "", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["check_status"])

	resp = postJSON(t, ts, "/api/check_token", "", map[string]string{"token": "bogus"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, false, body["check_status"])
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice")

	resp := postJSON(t, ts, "/api/auth/logout", token, map[string]string{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Token no longer valid
	resp = getJSON(t, ts, "/api/users/me", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Second logout with the same token fails
	resp = postJSON(t, ts, "/api/auth/logout", token, map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Unauthorized", body["error"])
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice")

	resp := getJSON(t, ts, "/api/users/me", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "alice", body["login"])
	assert.Equal(t, "alice", body["first_name"])
	assert.Equal(t, true, body["is_online"])
	_, leaked := body["password_hash"]
	assert.False(t, leaked, "password hash must never appear in responses")

	resp = getJSON(t, ts, "/api/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestUsersEndpoints_RequireAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/users",
		"/api/users/online",
		"/api/users/count",
		"/api/messages",
		"/api/messages/new?after_id=0",
		"/api/messages/count",
	} {
		resp := getJSON(t, ts, path, "")
		assert.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "GET %s without token", path)
		resp.Body.Close()
	}
}

func TestUsersListing(t *testing.T) {
	ts := newTestServer(t)
	aliceTok := registerAndLogin(t, ts, "alice")
	registerAndLogin(t, ts, "bob")

	resp := getJSON(t, ts, "/api/users", aliceTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["total"])
	users, ok := body["users"].([]any)
	require.True(t, ok)
	assert.Len(t, users, 2)

	resp = getJSON(t, ts, "/api/users/online", aliceTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(2), body["total_online"])

	resp = getJSON(t, ts, "/api/users/count", aliceTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(2), body["count"])
}

func TestMessages(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice")

	for i := 0; i < 3; i++ {
		resp := postJSON(t, ts, "/api/messages", token, map[string]string{
			"message_text": fmt.Sprintf("message %d", i),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := getJSON(t, ts, "/api/messages", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 3)

	first, ok := messages[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "message 0", first["message_text"])
	assert.NotEmpty(t, first["timestamp"])
	author, ok := first["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", author["login"])

	// limit narrows the window to the newest entries
	resp = getJSON(t, ts, "/api/messages?limit=2", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	messages = body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "message 1", messages[0].(map[string]any)["message_text"])

	resp = getJSON(t, ts, "/api/messages/count", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(3), body["count"])
}

func TestMessages_BadQueryParams(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice")

	for _, path := range []string{
		"/api/messages?limit=abc",
		"/api/messages?limit=-1",
		"/api/messages?limit=0",
		"/api/messages/new?after_id=abc",
		"/api/messages/new",
	} {
		resp := getJSON(t, ts, path, token)
		assert.Equalf(t, http.StatusUnprocessableEntity, resp.StatusCode, "GET %s", path)
		resp.Body.Close()
	}
}

func TestNewMessages(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice")

	for i := 0; i < 3; i++ {
		resp := postJSON(t, ts, "/api/messages", token, map[string]string{
			"message_text": fmt.Sprintf("message %d", i),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := getJSON(t, ts, "/api/messages/new?after_id=0", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	messages := body["messages"].([]any)
	require.Len(t, messages, 3)

	lastID := messages[2].(map[string]any)["id"].(float64)
	resp = getJSON(t, ts, fmt.Sprintf("/api/messages/new?after_id=%d", int64(lastID)), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Empty(t, body["messages"])
}

func TestSendMessage_Validation(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "alice")

	resp := postJSON(t, ts, "/api/messages", token, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/messages", "bogus", map[string]string{
		"message_text": "hello",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestMetricsLabelByRoutePattern(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts, "/api/alive", "")
	resp.Body.Close()
	resp = getJSON(t, ts, "/api/no-such-route-xyzzy", "")
	resp.Body.Close()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var paths []string
	for _, mf := range families {
		if mf.GetName() != "fireside_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "path" {
					paths = append(paths, label.GetValue())
				}
			}
		}
	}

	assert.Contains(t, paths, "GET /api/alive")
	assert.Contains(t, paths, "unmatched")
	// Raw request paths never become label values
	assert.NotContains(t, paths, "/api/no-such-route-xyzzy")
	assert.NotContains(t, paths, "/api/alive")
}

func TestCORSHeaders(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts, "/api/alive", "")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/messages", nil)
	require.NoError(t, err)
	preflight, err := ts.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, preflight.StatusCode)
	assert.Equal(t, "*", preflight.Header.Get("Access-Control-Allow-Origin"))
	preflight.Body.Close()
}
