package backend

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenAudience = "recipe-api"

// createToken generates a short-lived JWT signed with the shared secret.
func createToken(secret []byte, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
		"aud": tokenAudience,
	})
	token.Header["kid"] = "weekly-menu-planner"

	return token.SignedString(secret)
}
