package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/testdeckhq/testdeck/agent"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/session"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey ContextKey = "user_id"

	// UserEmailKey is the context key for user email.
	UserEmailKey ContextKey = "user_email"

	// AgentKey is the context key for the authenticated agent.
	AgentKey ContextKey = "agent"
)

// AuthMiddleware validates session cookies and adds user info to the context.
type AuthMiddleware struct {
	sessionManager *session.Manager
	secureCookie   *securecookie.SecureCookie
	cookieName     string
	logger         logger.Logger
}

// NewAuthMiddleware creates a new session authentication middleware.
func NewAuthMiddleware(sessionManager *session.Manager, cookieSecret, cookieName string, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		sessionManager: sessionManager,
		secureCookie:   securecookie.New([]byte(cookieSecret), nil),
		cookieName:     cookieName,
		logger:         log,
	}
}

// Handler wraps an HTTP handler with session authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil {
			m.logger.Warn(r.Context(), "missing session cookie", map[string]interface{}{
				"path": r.URL.Path,
			})
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		var sessionIDStr string
		if err := m.secureCookie.Decode(m.cookieName, cookie.Value, &sessionIDStr); err != nil {
			m.logger.Warn(r.Context(), "invalid session cookie", map[string]interface{}{
				"error": err.Error(),
			})
			respondError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		sess, err := m.sessionManager.Get(sessionID)
		if err != nil {
			m.logger.Warn(r.Context(), "invalid or expired session", map[string]interface{}{
				"error":      err.Error(),
				"session_id": sessionID.String(),
			})
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, sess.UserID)
		ctx = context.WithValue(ctx, UserEmailKey, sess.Email)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AgentAuthMiddleware validates agent bearer tokens and adds the agent to the
// context.
type AgentAuthMiddleware struct {
	agents agent.Store
	logger logger.Logger
}

// NewAgentAuthMiddleware creates a new agent token middleware.
func NewAgentAuthMiddleware(agents agent.Store, log logger.Logger) *AgentAuthMiddleware {
	return &AgentAuthMiddleware{agents: agents, logger: log}
}

// Handler wraps an HTTP handler with agent bearer token authentication.
func (m *AgentAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "agent token required")
			return
		}

		rawToken := strings.TrimPrefix(authHeader, "Bearer ")
		a, err := m.agents.GetByTokenHash(r.Context(), agent.HashToken(rawToken))
		if err != nil {
			m.logger.Warn(r.Context(), "invalid agent token", map[string]interface{}{
				"path": r.URL.Path,
			})
			respondError(w, http.StatusUnauthorized, "invalid agent token")
			return
		}

		ctx := context.WithValue(r.Context(), AgentKey, a)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the user ID from the request context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetUserEmail extracts the user email from the request context.
func GetUserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}

// GetAgent extracts the authenticated agent from the request context.
func GetAgent(ctx context.Context) (*agent.Agent, bool) {
	a, ok := ctx.Value(AgentKey).(*agent.Agent)
	return a, ok
}
