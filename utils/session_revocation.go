package utils

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const revokedSessionPrefix = "session:revoked:"

var (
	revokedSessions   = map[string]time.Time{}
	revokedSessionsMu sync.Mutex
)

// RevokeSession refuses token until it would have expired anyway.
func RevokeSession(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if token == "" || ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := rc.Set(ctx, revokedSessionPrefix+token, "1", ttl).Err()
		if err == nil {
			return
		}
		Logger.Warn("revoke session in redis failed, keeping it in memory", zap.Error(err))
	}
	revokedSessionsMu.Lock()
	now := time.Now()
	for t, exp := range revokedSessions {
		if now.After(exp) {
			delete(revokedSessions, t)
		}
	}
	revokedSessions[token] = expiresAt
	revokedSessionsMu.Unlock()
}

// IsSessionRevoked reports whether token was ended by a logout.
func IsSessionRevoked(token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, revokedSessionPrefix+token).Result()
		if err == nil && n > 0 {
			return true
		}
	}
	revokedSessionsMu.Lock()
	defer revokedSessionsMu.Unlock()
	exp, ok := revokedSessions[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(revokedSessions, token)
		return false
	}
	return true
}
