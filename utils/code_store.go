package utils

import (
	"context"
	"sync"
	"time"
)

// in-memory fallback store
type codeEntry struct {
	owner     string
	expiresAt time.Time
}

var (
	codeStore   = map[string]codeEntry{}
	codeStoreMu sync.Mutex
)

func requestCodeKey(code string) string {
	return "platform:request-code:" + code
}

// SaveRequestCode remembers which user a platform request code was issued to. Prefer Redis; fallback to memory.
func SaveRequestCode(code, owner string, ttl time.Duration) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, requestCodeKey(code), owner, ttl).Err(); err == nil {
			return
		}
	}
	codeStoreMu.Lock()
	defer codeStoreMu.Unlock()
	pruneCodesLocked(time.Now())
	codeStore[code] = codeEntry{owner: owner, expiresAt: time.Now().Add(ttl)}
}

// LookupRequestCode returns the owner of an unexpired code without consuming it.
func LookupRequestCode(code string) (string, bool) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if owner, err := rc.Get(ctx, requestCodeKey(code)).Result(); err == nil {
			return owner, true
		}
		// On miss or Redis error, fall through to the memory store
	}
	codeStoreMu.Lock()
	defer codeStoreMu.Unlock()
	entry, ok := codeStore[code]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(codeStore, code)
		return "", false
	}
	return entry.owner, true
}

func pruneCodesLocked(now time.Time) {
	for k, e := range codeStore {
		if now.After(e.expiresAt) {
			delete(codeStore, k)
		}
	}
}
