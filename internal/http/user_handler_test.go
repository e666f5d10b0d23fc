package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"agrochat/internal/domain"
	"agrochat/internal/service"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	usersByAuth  map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
		usersByAuth:  make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.usersByID[user.ID] = user
	if user.Email != "" {
		m.usersByEmail[user.Email] = user.ID
	}
	if user.AuthProvider != "" && user.AuthSubject != "" {
		m.usersByAuth[user.AuthProvider+"|"+user.AuthSubject] = user.ID
	}
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) GetByAuth(_ context.Context, provider, subject string) (domain.User, error) {
	id, ok := m.usersByAuth[provider+"|"+subject]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) LinkOAuth(_ context.Context, id, provider, subject string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.AuthProvider = provider
	user.AuthSubject = subject
	m.usersByID[id] = user
	m.usersByAuth[provider+"|"+subject] = id
	return nil
}

func setupAuthRouter() (*gin.Engine, *service.JWTService) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, service.NewMemoryRefreshTokenStore())
	userSvc := service.NewUserService(logger, newMockUserRepo())
	handler := NewUserHandler(logger, userSvc, jwtSvc)

	r := gin.New()
	auth := r.Group("/auth")
	auth.POST("/oauth", handler.OAuthLogin)
	auth.POST("/refresh", handler.RefreshToken)
	auth.POST("/logout", handler.Logout)
	return r, jwtSvc
}

type tokensResponse struct {
	User   domain.User       `json:"user"`
	Tokens service.TokenPair `json:"tokens"`
}

func TestUserHandler_OAuthLoginIssuesTokens(t *testing.T) {
	r, jwtSvc := setupAuthRouter()

	rec := performRequest(r, http.MethodPost, "/auth/oauth", map[string]any{
		"provider":     "google",
		"subject":      "sub-1",
		"email":        "farmer@example.com",
		"display_name": "Farmer",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp tokensResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.User.ID == "" || resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected user and tokens, got %+v", resp)
	}

	claims, err := jwtSvc.ParseAccessToken(resp.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != resp.User.ID {
		t.Fatalf("expected claims for %q, got %q", resp.User.ID, claims.UserID)
	}
}

func TestUserHandler_OAuthLoginAcceptsMissingEmail(t *testing.T) {
	r, _ := setupAuthRouter()

	// Algunos proveedores no comparten el email; el alta sigue siendo válida
	// con solo provider y subject.
	rec := performRequest(r, http.MethodPost, "/auth/oauth", map[string]any{
		"provider": "google",
		"subject":  "sub-no-email",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without email, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp tokensResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.User.ID == "" || resp.User.Email != "" {
		t.Fatalf("expected user without email, got %+v", resp.User)
	}
}

func TestUserHandler_OAuthLoginRejectsMissingSubject(t *testing.T) {
	r, _ := setupAuthRouter()

	rec := performRequest(r, http.MethodPost, "/auth/oauth", map[string]any{
		"provider": "google",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUserHandler_RefreshRotatesTokens(t *testing.T) {
	r, _ := setupAuthRouter()

	login := performRequest(r, http.MethodPost, "/auth/oauth", map[string]any{
		"provider": "google",
		"subject":  "sub-1",
		"email":    "farmer@example.com",
	}, "")
	var loginResp tokensResponse
	if err := json.Unmarshal(login.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}

	rec := performRequest(r, http.MethodPost, "/auth/refresh", map[string]any{
		"refresh_token": loginResp.Tokens.RefreshToken,
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// El refresh token usado queda revocado.
	rec = performRequest(r, http.MethodPost, "/auth/refresh", map[string]any{
		"refresh_token": loginResp.Tokens.RefreshToken,
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on reused token, got %d", rec.Code)
	}
}

func TestUserHandler_LogoutRevokesRefreshToken(t *testing.T) {
	r, _ := setupAuthRouter()

	login := performRequest(r, http.MethodPost, "/auth/oauth", map[string]any{
		"provider": "google",
		"subject":  "sub-1",
		"email":    "farmer@example.com",
	}, "")
	var loginResp tokensResponse
	if err := json.Unmarshal(login.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}

	rec := performRequest(r, http.MethodPost, "/auth/logout", map[string]any{
		"refresh_token": loginResp.Tokens.RefreshToken,
	}, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = performRequest(r, http.MethodPost, "/auth/refresh", map[string]any{
		"refresh_token": loginResp.Tokens.RefreshToken,
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}
