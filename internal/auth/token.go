package auth

import (
	"errors"
	"time"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
)

// DefaultTokenTTL is used when the configured TTL is not positive
const DefaultTokenTTL = 72 * time.Hour

// TokenIssuer signs and verifies the bearer tokens handed out at login
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an HS256 issuer
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token identifying userID
func (i *TokenIssuer) Issue(userID string) (string, error) {
	now := i.now()
	claims := &models.JwtCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies tokenString and returns the user id it carries. Every
// failure is an AuthError with Invalid set.
func (i *TokenIssuer) Parse(tokenString string) (string, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return "", &apperrors.AuthError{Message: "token expired", Invalid: true}
		}
		return "", &apperrors.AuthError{Message: "invalid token", Invalid: true}
	}
	if !token.Valid || claims.UserID == "" {
		return "", &apperrors.AuthError{Message: "invalid token", Invalid: true}
	}
	return claims.UserID, nil
}
