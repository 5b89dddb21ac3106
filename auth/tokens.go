package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"citycal/middleware"
	"citycal/models"
	"citycal/utils"
)

// TokenIssuer signs access tokens and mints refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret []byte, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// IssueAccessToken returns an HS256 token whose jti allows it to be revoked on logout.
func (t *TokenIssuer) IssueAccessToken(u *models.User) (string, error) {
	now := t.now()
	claims := &middleware.Claims{
		UserID: u.UserID,
		Email:  u.Email,
		Name:   u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utils.GetUUID(),
			Subject:   u.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// NewRefreshToken returns the token for the client and the hash to store.
func (t *TokenIssuer) NewRefreshToken() (plain, hashed string, expires time.Time, err error) {
	plain, err = utils.RandomHex(32)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return plain, hashToken(plain), t.now().Add(t.refreshTTL), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
