package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"citycal/models"
	"citycal/store"
	"citycal/utils"
)

const (
	stateCookieName     = "oauth_state"
	defaultGitHubAPIURL = "https://api.github.com"
)

// GitHubProvider runs the OAuth code flow against GitHub and reads the
// signed-in account through the REST API.
type GitHubProvider struct {
	oauth *oauth2.Config
	api   *resty.Client
}

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint and APIBaseURL default to github.com.
	Endpoint   *oauth2.Endpoint
	APIBaseURL string
}

func NewGitHubProvider(cfg GitHubConfig) *GitHubProvider {
	endpoint := github.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	base := cfg.APIBaseURL
	if base == "" {
		base = defaultGitHubAPIURL
	}

	api := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "application/vnd.github+json").
		SetTimeout(10 * time.Second)

	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		api: api,
	}
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// githubAccount is the subset of GitHub data needed to sign a user in.
type githubAccount struct {
	githubUser
	// Email is the verified primary address, empty when there is none.
	Email string
}

func (p *GitHubProvider) fetchAccount(ctx context.Context, token *oauth2.Token) (*githubAccount, error) {
	var u githubUser
	resp, err := p.api.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetResult(&u).
		Get("/user")
	if err != nil {
		return nil, fmt.Errorf("github user request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("github user status %d", resp.StatusCode())
	}
	if u.ID == 0 {
		return nil, errors.New("github user has no id")
	}

	var emails []githubEmail
	resp, err = p.api.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetResult(&emails).
		Get("/user/emails")
	if err != nil {
		return nil, fmt.Errorf("github emails request: %w", err)
	}

	acct := &githubAccount{githubUser: u}
	// a missing email scope is not fatal, the account is keyed by id
	if !resp.IsError() {
		for _, e := range emails {
			if e.Primary && e.Verified {
				acct.Email = strings.ToLower(strings.TrimSpace(e.Email))
				break
			}
		}
	}
	return acct, nil
}

// GET /api/auth/github/login
func (h *Handler) GitHubLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	state, err := utils.RandomHex(16)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate oauth state")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GET /api/auth/github/callback
func (h *Handler) GitHubCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*h.timeout)
	defer cancel()

	token, err := h.github.oauth.Exchange(ctx, code)
	if err != nil {
		log.Warn().Err(err).Msg("github code exchange failed")
		utils.RespondWithError(w, http.StatusUnauthorized, "GitHub authorization failed")
		return
	}

	acct, err := h.github.fetchAccount(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("failed to load github account")
		utils.RespondWithError(w, http.StatusBadGateway, "Failed to load GitHub account")
		return
	}

	user, err := h.userForGitHub(ctx, acct)
	if err != nil {
		log.Error().Err(err).Int64("githubId", acct.ID).Msg("failed to resolve github user")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.startSession(ctx, w, user, "Login successful")
}

// userForGitHub finds the account bound to the GitHub id, links an existing
// account with the same verified email, or creates a new one.
func (h *Handler) userForGitHub(ctx context.Context, acct *githubAccount) (*models.User, error) {
	user, err := h.users.FindByGitHubID(ctx, acct.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if acct.Email != "" {
		user, err = h.users.FindByEmail(ctx, acct.Email)
		switch {
		case err == nil:
			user.GitHubID = acct.ID
			user.EmailVerified = true
			if user.Image == "" {
				user.Image = acct.AvatarURL
			}
			user.UpdatedAt = time.Now().UTC()
			if err := h.users.Update(ctx, user); err != nil {
				return nil, err
			}
			log.Info().Str("userId", user.UserID).Int64("githubId", acct.ID).Msg("linked github account")
			return user, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	name := acct.Name
	if name == "" {
		name = acct.Login
	}
	now := time.Now().UTC()
	user = &models.User{
		UserID:        utils.GetUUID(),
		Name:          name,
		Email:         acct.Email,
		Image:         acct.AvatarURL,
		GitHubID:      acct.ID,
		EmailVerified: acct.Email != "",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.users.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Info().Str("userId", user.UserID).Int64("githubId", acct.ID).Msg("created user from github")
	return user, nil
}
