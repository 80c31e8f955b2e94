package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/roastery/cafemart/internal/models"
)

const tokenLifetime = 24 * time.Hour

// AuthToken creates and verifies auth tokens
type AuthToken struct {
	key []byte
}

// NewAuthToken creates new AuthToken instance
func NewAuthToken(key []byte) *AuthToken {
	return &AuthToken{key: key}
}

type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
}

// CreateToken creates signed token for user
func (a *AuthToken) CreateToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: user.ID,
		Role:   user.Role,
	})

	return token.SignedString(a.key)
}

// VerifyToken verifies token string and extracts payload
func (a *AuthToken) VerifyToken(tokenString string) (*models.TokenPayload, error) {
	c := claims{}

	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return &models.TokenPayload{
		UserID: c.UserID,
		Role:   c.Role,
	}, nil
}
