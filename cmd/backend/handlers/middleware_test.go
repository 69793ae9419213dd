package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testdeckhq/testdeck/agent"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/session"
	"github.com/testdeckhq/testdeck/testutil"
)

const testCookieSecret = "0123456789abcdef0123456789abcdef"

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	log := logger.NewTestLogger()
	manager := session.NewManager(time.Hour, log)
	mw := NewAuthMiddleware(manager, testCookieSecret, "session_id", log)
	sc := securecookie.New([]byte(testCookieSecret), nil)

	encodeSession := func(t *testing.T, sessionID string) *http.Cookie {
		t.Helper()
		encoded, err := sc.Encode("session_id", sessionID)
		require.NoError(t, err)
		return &http.Cookie{Name: "session_id", Value: encoded}
	}

	t.Run("valid session passes user info through", func(t *testing.T) {
		userID := uuid.New()
		sess, err := manager.Create(userID, "alice@example.com")
		require.NoError(t, err)

		var gotUserID uuid.UUID
		var gotEmail string
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserID, _ = GetUserID(r.Context())
			gotEmail, _ = GetUserEmail(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tests", nil)
		req.AddCookie(encodeSession(t, sess.ID.String()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, gotUserID)
		assert.Equal(t, "alice@example.com", gotEmail)
	})

	t.Run("missing cookie", func(t *testing.T) {
		called := false
		handler := mw.Handler(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tests", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("tampered cookie", func(t *testing.T) {
		called := false
		handler := mw.Handler(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tests", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "not-a-valid-cookie"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("unknown session id", func(t *testing.T) {
		called := false
		handler := mw.Handler(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tests", nil)
		req.AddCookie(encodeSession(t, uuid.New().String()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("expired session", func(t *testing.T) {
		shortManager := session.NewManager(time.Millisecond, log)
		shortMW := NewAuthMiddleware(shortManager, testCookieSecret, "session_id", log)

		sess, err := shortManager.Create(uuid.New(), "bob@example.com")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		called := false
		handler := shortMW.Handler(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tests", nil)
		req.AddCookie(encodeSession(t, sess.ID.String()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})
}

func TestAgentAuthMiddleware(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &agent.Agent{})
	log := logger.NewTestLogger()
	agents := agent.NewMySQLStore(db, log)
	mw := NewAgentAuthMiddleware(agents, log)

	registered, rawToken, err := agent.Register(context.Background(), agents, "worker-1", "Worker One", agent.Tags{"chromium"}, 1)
	require.NoError(t, err)

	t.Run("valid bearer token passes the agent through", func(t *testing.T) {
		var got *agent.Agent
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = GetAgent(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/agents/poll", nil)
		req.Header.Set("Authorization", "Bearer "+rawToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, registered.AgentID, got.AgentID)
	})

	t.Run("missing header", func(t *testing.T) {
		called := false
		handler := mw.Handler(okHandler(&called))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/agents/poll", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("unknown token", func(t *testing.T) {
		called := false
		handler := mw.Handler(okHandler(&called))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/agents/poll", nil)
		req.Header.Set("Authorization", "Bearer tda_unknown-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		called := false
		handler := mw.Handler(okHandler(&called))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/agents/poll", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})
}
