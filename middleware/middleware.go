package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"citycal/globals"
	"citycal/utils"
)

// JWT claims. RegisteredClaims.ID carries the token id used for revocation.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// RevocationList remembers logged-out token ids.
type RevocationList interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

var (
	ErrMissingToken = errors.New("missing token")
	ErrTokenFormat  = errors.New("invalid token format")
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("token revoked")
)

// Authenticator verifies bearer tokens and resolves the calling user.
type Authenticator struct {
	secret  []byte
	revoked RevocationList
}

func NewAuthenticator(secret []byte, revoked RevocationList) *Authenticator {
	return &Authenticator{secret: secret, revoked: revoked}
}

func (a *Authenticator) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		claims, err := a.ValidateJWT(r.Context(), r.Header.Get("Authorization"))
		switch {
		case errors.Is(err, ErrMissingToken):
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing token")
			return
		case errors.Is(err, ErrTokenFormat):
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token format")
			return
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrRevoked):
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		case err != nil:
			log.Error().Err(err).Msg("token revocation lookup failed")
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		next(w, r.WithContext(WithClaims(r.Context(), claims)), ps)
	}
}

// ValidateJWT parses an Authorization header value of the form "Bearer <token>".
func (a *Authenticator) ValidateJWT(ctx context.Context, header string) (*Claims, error) {
	if header == "" {
		return nil, ErrMissingToken
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return nil, ErrTokenFormat
	}

	claims, err := a.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	if a.revoked != nil && claims.ID != "" {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// ParseToken checks signature, algorithm and expiry.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	return claims, nil
}

// WithClaims stores the verified claims and user id in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, globals.ClaimsKey, claims)
	return context.WithValue(ctx, globals.UserIDKey, claims.UserID)
}

// CurrentUserID resolves the caller. ok is false for unauthenticated requests.
func CurrentUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func CurrentClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(globals.ClaimsKey).(*Claims)
	return claims, ok && claims != nil
}
