// ABOUTME: HTTP collaborator for the session facade - route registration and handlers
// ABOUTME: Thin glue: parses requests, calls the facade, maps typed errors to statuses

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fireside-chat/fireside/internal/session"
	"github.com/fireside-chat/fireside/internal/store"
)

// AuthTokenHeader carries the bearer token on authenticated requests.
const AuthTokenHeader = "Authorization-Token"

// defaultMessageLimit is used when a messages request carries no limit.
const defaultMessageLimit = 100

// Server exposes the session facade over HTTP. Only plain values and
// typed errors cross the boundary to the facade.
type Server struct {
	sessions  *session.Service
	logger    *slog.Logger
	validate  *validator.Validate
	startedAt time.Time
}

// New creates an HTTP server over the given session facade.
func New(sessions *session.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sessions:  sessions,
		logger:    logger.With("component", "server"),
		validate:  validator.New(),
		startedAt: time.Now().UTC(),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// System endpoints
	mux.HandleFunc("GET /api/alive", s.handleAlive)
	mux.HandleFunc("POST /api/check_token", s.handleCheckToken)

	// Authentication endpoints
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	// User endpoints
	mux.HandleFunc("GET /api/users/me", s.handleMe)
	mux.HandleFunc("GET /api/users/online", s.handleOnlineUsers)
	mux.HandleFunc("GET /api/users/count", s.handleUserCount)
	mux.HandleFunc("GET /api/users", s.handleUsers)

	// Message endpoints
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("POST /api/messages", s.handleSendMessage)
	mux.HandleFunc("GET /api/messages/new", s.handleNewMessages)
	mux.HandleFunc("GET /api/messages/count", s.handleMessageCount)
}

func (s *Server) handleAlive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "online",
		"started_at": s.startedAt.Format(timestampLayout),
		"timestamp":  time.Now().UTC().Format(timestampLayout),
	})
}

type checkTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

func (s *Server) handleCheckToken(w http.ResponseWriter, r *http.Request) {
	var req checkTokenRequest
	if !s.decode(w, r, &req) {
		return
	}

	exists, err := s.sessions.TokenExists(r.Context(), req.Token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"check_status": exists})
}

type registerRequest struct {
	Login     string `json:"login" validate:"required,min=3,max=32"`
	Password  string `json:"password" validate:"required,min=4"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.sessions.Register(r.Context(), req.Login, req.Password, req.FirstName, req.LastName); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	token, err := s.sessions.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "success",
		"auth_token": token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), r.Header.Get(AuthTokenHeader)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessions.WhoAmI(r.Context(), r.Header.Get(AuthTokenHeader))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}

	users, err := s.sessions.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": toUsersJSON(users),
		"total": len(users),
	})
}

func (s *Server) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}

	users, err := s.sessions.ListOnlineUsers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"online_users": toUsersJSON(users),
		"total_online": len(users),
	})
}

func (s *Server) handleUserCount(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}

	count, err := s.sessions.CountUsers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}

	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, &store.Error{
				Kind:    store.KindValidation,
				Message: "limit must be a positive integer",
				Code:    http.StatusUnprocessableEntity,
			})
			return
		}
		limit = parsed
	}

	messages, err := s.sessions.ListMessages(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": toMessagesJSON(messages)})
}

func (s *Server) handleNewMessages(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}

	afterID, err := strconv.ParseInt(r.URL.Query().Get("after_id"), 10, 64)
	if err != nil {
		s.writeError(w, &store.Error{
			Kind:    store.KindValidation,
			Message: "after_id must be an integer",
			Code:    http.StatusUnprocessableEntity,
		})
		return
	}

	messages, err := s.sessions.ListMessagesAfter(r.Context(), afterID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": toMessagesJSON(messages)})
}

type sendMessageRequest struct {
	MessageText string `json:"message_text" validate:"required"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.sessions.SendMessage(r.Context(), r.Header.Get(AuthTokenHeader), req.MessageText); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleMessageCount(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}

	count, err := s.sessions.CountMessages(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// decode parses and validates a JSON request body. On failure it writes a
// validation error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, &store.Error{
			Kind:    store.KindValidation,
			Message: "malformed request body",
			Code:    http.StatusUnprocessableEntity,
		})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, &store.Error{
			Kind:    store.KindValidation,
			Message: err.Error(),
			Code:    http.StatusUnprocessableEntity,
		})
		return false
	}
	return true
}

// requireAuth rejects requests whose token does not resolve to a live
// session. On failure it writes a 401 response and returns false.
func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) bool {
	exists, err := s.sessions.TokenExists(r.Context(), r.Header.Get(AuthTokenHeader))
	if err != nil {
		s.writeError(w, err)
		return false
	}
	if !exists {
		s.writeError(w, store.ErrUnknownToken)
		return false
	}
	return true
}

// writeError maps a typed store error to a status code and structured body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		storeErr = &store.Error{
			Kind:    store.KindStorage,
			Message: "internal error",
			Code:    http.StatusInternalServerError,
		}
	}

	code := storeErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	if storeErr.Kind == store.KindStorage {
		s.logger.Error("request failed", "error", err)
	} else {
		s.logger.Warn("request rejected", "error", err, "status", code)
	}

	writeJSON(w, code, errorBody{
		Error:   http.StatusText(code),
		Message: storeErr.Message,
	})
}
