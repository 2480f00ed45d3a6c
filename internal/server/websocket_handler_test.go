package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/config"
	"relaychat/internal/services"
)

func newHandshakeFixture(t *testing.T) (*gin.Engine, *services.AuthService, *hubFixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fx := newHubFixture()
	authService := services.NewAuthService(fx.users, &config.Config{
		JWTSecret:    "handshake-test-secret",
		JWTExpiryMin: 60,
	})

	engine := gin.New()
	engine.GET("/ws", NewWebSocketHandler(fx.hub, authService).Handle)
	return engine, authService, fx
}

func TestHandshake_MissingCredential(t *testing.T) {
	engine, _, _ := newHandshakeFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "credential missing")
}

func TestHandshake_InvalidCredential(t *testing.T) {
	engine, _, _ := newHandshakeFixture(t)

	for name, target := range map[string]string{
		"garbage query token": "/ws?token=not-a-jwt",
		"empty query token":   "/ws?token=",
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, target, nil)
			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token=not-a-jwt", nil)
	engine.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "credential invalid")
}

func TestHandshake_BearerHeaderAccepted(t *testing.T) {
	engine, authService, _ := newHandshakeFixture(t)

	resp, err := authService.Register(context.Background(), services.RegisterInput{
		Email:       "alice@test.dev",
		Password:    "longenough",
		DisplayName: "alice",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	engine.ServeHTTP(w, req)

	// Authentication passed; the request then fails the websocket
	// upgrade because it carries no Upgrade headers.
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandshake_WrongSigningKey(t *testing.T) {
	engine, _, fx := newHandshakeFixture(t)

	other := services.NewAuthService(fx.users, &config.Config{
		JWTSecret:    "a-different-secret",
		JWTExpiryMin: 60,
	})
	resp, err := other.Register(context.Background(), services.RegisterInput{
		Email:       "bob@test.dev",
		Password:    "longenough",
		DisplayName: "bob",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+resp.AccessToken, nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "credential invalid")
}
