package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/questmock/utils"
)

const (
	// ContextUserIDKey is the key used to store the authenticated user's uuid in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextTokenKey stores the raw bearer token.
	ContextTokenKey = "token"
	// ContextTokenExpiryKey stores the bearer token's expiry.
	ContextTokenExpiryKey = "token_expires_at"

	// APIAuthHeader carries the shared secret on platform-facing routes.
	APIAuthHeader = "api-auth"
)

// APIAuth rejects requests whose api-auth header does not match secret.
func APIAuth(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(ctx *gin.Context) {
		got := []byte(ctx.GetHeader(APIAuthHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// AuthRequired ensures the request carries a valid session token.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, "authorization header missing")
			ctx.Abort()
			return
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, "invalid authorization header format")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(secret, tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, "invalid token")
			ctx.Abort()
			return
		}
		if utils.IsSessionRevoked(tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, "session has ended")
			ctx.Abort()
			return
		}

		setSession(ctx, claims, tokenString)
		ctx.Next()
	}
}

// OptionalAuth attaches the session user when a valid bearer token is present
// and lets the request through either way.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if tokenString, ok := bearerToken(ctx.GetHeader("Authorization")); ok {
			if claims, err := utils.ParseToken(secret, tokenString); err == nil && !utils.IsSessionRevoked(tokenString) {
				setSession(ctx, claims, tokenString)
			}
		}
		ctx.Next()
	}
}

// SessionUserID returns the uuid set by AuthRequired or OptionalAuth.
func SessionUserID(ctx *gin.Context) (string, bool) {
	v, ok := ctx.Get(ContextUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// SessionToken returns the bearer token and its expiry for the current session.
func SessionToken(ctx *gin.Context) (string, time.Time, bool) {
	token := ctx.GetString(ContextTokenKey)
	if token == "" {
		return "", time.Time{}, false
	}
	return token, ctx.GetTime(ContextTokenExpiryKey), true
}

func setSession(ctx *gin.Context, claims *utils.Claims, token string) {
	ctx.Set(ContextUserIDKey, claims.Subject)
	ctx.Set(ContextUsernameKey, claims.Username)
	ctx.Set(ContextTokenKey, token)
	if claims.ExpiresAt != nil {
		ctx.Set(ContextTokenExpiryKey, claims.ExpiresAt.Time)
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
