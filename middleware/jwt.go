// middleware/jwt.go
package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"p9e.in/fixflow/models"
	"p9e.in/fixflow/pkg/authz"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

// Claims are the custom payload in the JWT. The HTTP layer is the trust
// boundary: role and participant come from the token, never from request
// bodies.
type Claims struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	RoleID     int    `json:"roleId"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	jwt.RegisteredClaims
}

// unexported type prevents collisions in context
type ctxKey int

const (
	userClaimsKey ctxKey = iota
)

// GenerateToken creates a signed JWT valid for 24 h
func GenerateToken(user *models.User) (string, error) {
	claims := Claims{
		UserID:     user.ID.String(),
		Name:       user.Name,
		RoleID:     user.RoleID,
		EntityType: string(user.EntityType),
		EntityID:   user.ParticipantID.String(),

		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// JWTMiddleware validates the token and stashes the Claims in ctx
func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			http.Error(w, "missing Authorization header", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, "invalid auth header", http.StatusUnauthorized)
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(t *jwt.Token) (interface{}, error) {
			return jwtKey, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			http.Error(w, "invalid token claims", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims pulls the *Claims out of the request context (or nil)
func GetClaims(r *http.Request) *Claims {
	if c, ok := r.Context().Value(userClaimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// ActorFromRequest converts validated claims into the typed actor the core
// consumes. Raw role integers stop here.
func ActorFromRequest(r *http.Request) (authz.Actor, bool) {
	c := GetClaims(r)
	if c == nil {
		return authz.Actor{}, false
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return authz.Actor{}, false
	}
	participantID, err := uuid.Parse(c.EntityID)
	if err != nil {
		return authz.Actor{}, false
	}
	return authz.Actor{
		UserID:        userID,
		Role:          authz.RoleFromID(c.RoleID),
		EntityType:    models.EntityType(c.EntityType),
		ParticipantID: participantID,
	}, true
}
