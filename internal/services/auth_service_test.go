package services

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/config"
	"relaychat/internal/domain/user"
	relay_errors "relaychat/pkg/errors"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]user.User)}
}

func (f *memUserRepo) Create(ctx context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = *u
	return nil
}

func (f *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return user.User{}, relay_errors.ErrNotFound
	}
	return u, nil
}

func (f *memUserRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, relay_errors.ErrNotFound
}

func (f *memUserRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []user.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *memUserRepo) UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool) error {
	return nil
}

func (f *memUserRepo) UpdateLastSeen(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error {
	return nil
}

func newTestAuthService() (*AuthService, *memUserRepo) {
	repo := newMemUserRepo()
	return NewAuthService(repo, &config.Config{JWTSecret: "unit-test-secret", JWTExpiryMin: 30}), repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterInput{
		Email:       "alice@test.dev",
		Username:    "alice",
		Password:    "correct horse",
		DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(30*60), resp.ExpiresIn)
	assert.Equal(t, "Alice", resp.User.DisplayName)

	login, err := svc.Login(ctx, LoginInput{Email: "alice@test.dev", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	claims, err := svc.ParseAccessToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	cases := map[string]RegisterInput{
		"missing email":        {Password: "longenough", DisplayName: "x"},
		"missing display name": {Email: "a@b.c", Password: "longenough"},
		"short password":       {Email: "a@b.c", Password: "short", DisplayName: "x"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, in)
			assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	in := RegisterInput{Email: "alice@test.dev", Password: "longenough", DisplayName: "Alice"}
	_, err := svc.Register(ctx, in)
	require.NoError(t, err)

	_, err = svc.Register(ctx, in)
	assert.ErrorIs(t, err, relay_errors.ErrAlreadyExists)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "alice@test.dev", Password: "longenough", DisplayName: "Alice"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginInput{Email: "alice@test.dev", Password: "wrong password"})
	assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)

	// unknown accounts look identical to wrong passwords
	_, err = svc.Login(ctx, LoginInput{Email: "nobody@test.dev", Password: "whatever"})
	assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)
}

func TestParseAccessToken_Rejections(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.ParseAccessToken("")
	assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)

	_, err = svc.ParseAccessToken("not.a.jwt")
	assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)

	other, _ := newTestAuthService()
	other.jwtSecret = []byte("some-other-secret")
	resp, err := other.Register(context.Background(), RegisterInput{
		Email: "bob@test.dev", Password: "longenough", DisplayName: "Bob",
	})
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(resp.AccessToken)
	assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)
}

func TestUserContextRoundTrip(t *testing.T) {
	userID := uuid.New()
	ctx := WithUserContext(context.Background(), userID)

	got, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, userID, got)

	_, ok = UserIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{relay_errors.ErrInvalidInput, http.StatusBadRequest},
		{relay_errors.ErrUnauthorized, http.StatusUnauthorized},
		{relay_errors.ErrForbidden, http.StatusForbidden},
		{relay_errors.ErrNotParticipant, http.StatusForbidden},
		{relay_errors.ErrNotFound, http.StatusNotFound},
		{relay_errors.ErrAlreadyExists, http.StatusConflict},
		{relay_errors.ErrConflict, http.StatusConflict},
		{relay_errors.ErrRateLimited, http.StatusTooManyRequests},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "error %v", tc.err)
	}
}
