package service

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

var (
	jwtSecret []byte

	ErrInvalidToken = errors.New("invalid token")
)

// Claims identifies a player. The subject carries the player id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func InitJWT(secret string) {
	if secret == "" {
		panic("JWT secret is empty")
	}
	jwtSecret = []byte(secret)
}

func GenerateJWT(playerID int64, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(playerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ParseJWT validates the token and returns the player id and display name.
func ParseJWT(tokenString string) (int64, string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidToken
	}

	playerID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || playerID <= 0 {
		return 0, "", ErrInvalidToken
	}
	return playerID, claims.Name, nil
}
