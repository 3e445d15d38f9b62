package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim is issued by the auth collaborator; Subject is the actor id.
type JwtCustomClaim struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Workbenches []string `json:"workbenches"`
	jwt.StandardClaims
}

// CanAccessWorkbench is true for admins or when the workbench is listed in the claim.
func (c *JwtCustomClaim) CanAccessWorkbench(workbenchId string) bool {
	if c.Role == "admin" {
		return true
	}
	for _, w := range c.Workbenches {
		if w == workbenchId {
			return true
		}
	}
	return false
}

func jwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		secret = "ledger-engine-secret"
	}
	return []byte(secret)
}

// JwtGenerate signs a token for an actor. Used by the cli and tests.
func JwtGenerate(actorId string, name string, role string, workbenches []string, lifespan time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		Name:        name,
		Role:        role,
		Workbenches: workbenches,
		StandardClaims: jwt.StandardClaims{
			Subject:   actorId,
			ExpiresAt: time.Now().Add(lifespan).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	return t.SignedString(jwtSecret())
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret(), nil
	})
}
