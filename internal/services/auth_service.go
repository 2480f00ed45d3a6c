package services

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"relaychat/config"
	"relaychat/internal/domain/user"
	"relaychat/internal/repository"
	relay_errors "relaychat/pkg/errors"
)

// AuthService issues and verifies the access tokens the websocket
// handshake and the REST surface both consume.
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: time.Duration(cfg.JWTExpiryMin) * time.Minute,
	}
}

type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int64    `json:"expires_in"`
	User        UserInfo `json:"user"`
}

type UserInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type AccessClaims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	if err := validateRegister(in); err != nil {
		return AuthResponse{}, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, in.Email); err == nil {
		return AuthResponse{}, relay_errors.ErrAlreadyExists
	} else if !errors.Is(err, relay_errors.ErrNotFound) {
		return AuthResponse{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return AuthResponse{}, err
	}

	now := time.Now()
	newUser := &user.User{
		ID:           uuid.New(),
		Email:        in.Email,
		Username:     toNullString(in.Username),
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return AuthResponse{}, err
	}

	token, expiresIn, err := s.newAccessToken(newUser.ID)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{AccessToken: token, ExpiresIn: expiresIn, User: toUserInfo(*newUser)}, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	if in.Email == "" || in.Password == "" {
		return AuthResponse{}, relay_errors.ErrInvalidInput
	}

	u, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return AuthResponse{}, relay_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}

	if err := comparePassword(u.PasswordHash, in.Password); err != nil {
		return AuthResponse{}, relay_errors.ErrUnauthorized
	}

	token, expiresIn, err := s.newAccessToken(u.ID)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{AccessToken: token, ExpiresIn: expiresIn, User: toUserInfo(u)}, nil
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, relay_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, relay_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, relay_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, relay_errors.ErrUnauthorized
	}

	return *claims, nil
}

func (s *AuthService) newAccessToken(userID uuid.UUID) (string, int64, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.accessTTL.Seconds()), nil
}

type ctxKey string

var userIDKey ctxKey = "user_id"

func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

// HTTPStatus maps sentinel errors to response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, relay_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, relay_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, relay_errors.ErrForbidden), errors.Is(err, relay_errors.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, relay_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, relay_errors.ErrAlreadyExists), errors.Is(err, relay_errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, relay_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func validateRegister(in RegisterInput) error {
	if in.Email == "" || in.DisplayName == "" {
		return relay_errors.ErrInvalidInput
	}
	if len(in.Password) < 8 {
		return relay_errors.ErrInvalidInput
	}
	return nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func comparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func toNullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func toUserInfo(u user.User) UserInfo {
	info := UserInfo{
		ID:          u.ID.String(),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
	}
	if u.Username.Valid {
		info.Username = u.Username.String
	}
	return info
}
