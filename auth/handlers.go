package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"citycal/middleware"
	"citycal/models"
	"citycal/store"
	"citycal/utils"
)

type Handler struct {
	users      store.UserStore
	tokens     *TokenIssuer
	revoked    middleware.RevocationList
	bcryptCost int
	github     *GitHubProvider
	timeout    time.Duration
}

type Options struct {
	Users      store.UserStore
	Tokens     *TokenIssuer
	Revoked    middleware.RevocationList
	BcryptCost int
	// GitHub is nil when OAuth sign in is not configured.
	GitHub  *GitHubProvider
	Timeout time.Duration
}

func NewHandler(opts Options) *Handler {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Handler{
		users:      opts.Users,
		tokens:     opts.Tokens,
		revoked:    opts.Revoked,
		bcryptCost: opts.BcryptCost,
		github:     opts.GitHub,
		timeout:    opts.Timeout,
	}
}

// GitHubEnabled reports whether the OAuth routes should be mounted.
func (h *Handler) GitHubEnabled() bool {
	return h.github != nil
}

type registrationInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input registrationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" || input.Email == "" || input.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	_, err := h.users.FindByEmail(ctx, input.Email)
	if err == nil {
		utils.RespondWithError(w, http.StatusConflict, "Email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Msg("user lookup failed during registration")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), h.bcryptCost)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		UserID:    utils.GetUUID(),
		Name:      input.Name,
		Email:     input.Email,
		Password:  string(hashedPassword),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.RespondWithError(w, http.StatusConflict, "Email already registered")
			return
		}
		log.Error().Err(err).Msg("failed to register user")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	log.Info().Str("userId", user.UserID).Msg("user registered")
	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"user":    user.Profile(),
	})
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input loginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Msg("user lookup failed during login")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	// accounts created through GitHub have no password
	if user == nil || user.Password == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	h.startSession(ctx, w, user, "Login successful")
}

type refreshInput struct {
	RefreshToken string `json:"refreshToken"`
}

// POST /api/auth/token/refresh
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input refreshInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.RefreshToken == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.FindByRefreshToken(ctx, hashToken(input.RefreshToken))
	if errors.Is(err, store.ErrNotFound) || (err == nil && time.Now().After(user.RefreshExpiry)) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("refresh token lookup failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	token, err := h.tokens.IssueAccessToken(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to sign access token")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	utils.SendResponse(w, http.StatusOK, map[string]string{"token": token}, "Token refreshed successfully", nil)
}

// POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	claims, ok := middleware.CurrentClaims(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if claims.ID != "" && claims.ExpiresAt != nil {
		if err := h.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			log.Error().Err(err).Str("userId", claims.UserID).Msg("failed to revoke token")
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to log out")
			return
		}
	}

	user, err := h.users.FindByID(ctx, claims.UserID)
	if err == nil && user.RefreshToken != "" {
		user.RefreshToken = ""
		user.RefreshExpiry = time.Time{}
		user.UpdatedAt = time.Now().UTC()
		if err := h.users.Update(ctx, user); err != nil {
			log.Warn().Err(err).Str("userId", user.UserID).Msg("failed to clear refresh token")
		}
	}

	utils.SendResponse(w, http.StatusOK, nil, "User logged out successfully", nil)
}

// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to load profile")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user.Profile())
}

// startSession issues an access token and a fresh refresh token for user.
func (h *Handler) startSession(ctx context.Context, w http.ResponseWriter, user *models.User, message string) {
	token, err := h.tokens.IssueAccessToken(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to sign access token")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	refresh, hashed, expires, err := h.tokens.NewRefreshToken()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate refresh token")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error generating refresh token")
		return
	}
	user.RefreshToken = hashed
	user.RefreshExpiry = expires
	user.UpdatedAt = time.Now().UTC()
	if err := h.users.Update(ctx, user); err != nil {
		log.Error().Err(err).Str("userId", user.UserID).Msg("failed to store refresh token")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to store refresh token")
		return
	}

	utils.SendResponse(w, http.StatusOK, map[string]string{
		"token":        token,
		"refreshToken": refresh,
		"userid":       user.UserID,
	}, message, nil)
}
