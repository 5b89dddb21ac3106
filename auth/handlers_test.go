package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"citycal/middleware"
	"citycal/store"
)

var testSecret = []byte("auth-test-secret")

type testEnv struct {
	router *httprouter.Router
	users  *store.MemoryUserStore
	tokens *TokenIssuer
}

func newEnv(t *testing.T, github *GitHubProvider) *testEnv {
	t.Helper()
	users := store.NewMemoryUserStore()
	revoked := middleware.NewMemoryRevocations()
	tokens := NewTokenIssuer(testSecret, time.Hour, 24*time.Hour)
	h := NewHandler(Options{
		Users:      users,
		Tokens:     tokens,
		Revoked:    revoked,
		BcryptCost: bcrypt.MinCost,
		GitHub:     github,
		Timeout:    time.Second,
	})
	authn := middleware.NewAuthenticator(testSecret, revoked)

	router := httprouter.New()
	router.POST("/api/auth/register", h.Register)
	router.POST("/api/auth/login", h.Login)
	router.POST("/api/auth/token/refresh", h.RefreshToken)
	router.POST("/api/auth/logout", authn.Authenticate(h.Logout))
	router.GET("/api/auth/me", authn.Authenticate(h.Me))
	if h.GitHubEnabled() {
		router.GET("/api/auth/github/login", h.GitHubLogin)
		router.GET("/api/auth/github/callback", h.GitHubCallback)
	}
	return &testEnv{router: router, users: users, tokens: tokens}
}

func (e *testEnv) do(method, url, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type sessionEnvelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
		UserID       string `json:"userid"`
	} `json:"data"`
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionEnvelope {
	t.Helper()
	var env sessionEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func (e *testEnv) registerAndLogin(t *testing.T) sessionEnvelope {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/register", `{"name":"Ada","email":"Ada@Example.com","password":"s3cret"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"s3cret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeSession(t, rec)
}

func TestRegister(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/auth/register", `{"name":"Ada","email":" Ada@Example.com ","password":"s3cret"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	var body struct {
		User struct {
			UserID string `json:"userid"`
			Email  string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ada@example.com", body.User.Email)
	assert.NotEmpty(t, body.User.UserID)

	stored, err := env.users.FindByEmail(t.Context(), "ada@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("s3cret")))

	rec = env.do(http.MethodPost, "/api/auth/register", `{"name":"Other","email":"ADA@example.com","password":"x"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	env := newEnv(t, nil)
	for _, body := range []string{
		`{"email":"a@b.c","password":"x"}`,
		`{"name":"A","password":"x"}`,
		`{"name":"A","email":"a@b.c"}`,
		`not json`,
	} {
		rec := env.do(http.MethodPost, "/api/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestLogin(t *testing.T) {
	env := newEnv(t, nil)
	session := env.registerAndLogin(t)

	assert.Equal(t, http.StatusOK, session.Status)
	assert.NotEmpty(t, session.Data.Token)
	assert.Len(t, session.Data.RefreshToken, 64)
	assert.NotEmpty(t, session.Data.UserID)

	stored, err := env.users.FindByID(t.Context(), session.Data.UserID)
	require.NoError(t, err)
	assert.Equal(t, hashToken(session.Data.RefreshToken), stored.RefreshToken)
	assert.True(t, stored.RefreshExpiry.After(time.Now()))
}

func TestLoginFailures(t *testing.T) {
	env := newEnv(t, nil)
	env.registerAndLogin(t)

	rec := env.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"s3cret"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshToken(t *testing.T) {
	env := newEnv(t, nil)
	session := env.registerAndLogin(t)

	rec := env.do(http.MethodPost, "/api/auth/token/refresh", `{"refreshToken":"`+session.Data.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := decodeSession(t, rec)
	assert.NotEmpty(t, refreshed.Data.Token)

	rec = env.do(http.MethodPost, "/api/auth/token/refresh", `{"refreshToken":"bogus"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/token/refresh", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshTokenExpired(t *testing.T) {
	env := newEnv(t, nil)
	session := env.registerAndLogin(t)

	user, err := env.users.FindByID(t.Context(), session.Data.UserID)
	require.NoError(t, err)
	user.RefreshExpiry = time.Now().Add(-time.Minute)
	require.NoError(t, env.users.Update(t.Context(), user))

	rec := env.do(http.MethodPost, "/api/auth/token/refresh", `{"refreshToken":"`+session.Data.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeAndLogout(t *testing.T) {
	env := newEnv(t, nil)
	session := env.registerAndLogin(t)

	rec := env.do(http.MethodGet, "/api/auth/me", "", session.Data.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)

	rec = env.do(http.MethodPost, "/api/auth/logout", "", session.Data.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the access token is revoked and the refresh token cleared
	rec = env.do(http.MethodGet, "/api/auth/me", "", session.Data.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/token/refresh", `{"refreshToken":"`+session.Data.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeRequiresToken(t *testing.T) {
	env := newEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssuedTokenParses(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour, time.Hour)
	token, err := issuer.IssueAccessToken(newUser("u-1", "u1@example.com"))
	require.NoError(t, err)

	claims, err := middleware.NewAuthenticator(testSecret, nil).ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}
