package utils

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestServerStopRunsHooksInOrder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := NewServer(handler, ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})

	var order []string
	srv.OnShutdown("first", func(context.Context) error {
		order = append(order, "first")
		return errors.New("ignored")
	})
	srv.OnShutdown("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}

	resp, err := http.Get("http://" + srv.ListenAddr().String() + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	srv.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("hooks ran as %v", order)
	}
}

func TestServerListenError(t *testing.T) {
	srv := NewServer(http.NotFoundHandler(), ServerConfig{Addr: "256.0.0.1:bad"})
	if err := srv.ListenAndServe(); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestRequestCodeMemoryStore(t *testing.T) {
	SaveRequestCode("code-live", "7", time.Minute)
	SaveRequestCode("code-dead", "8", -time.Second)

	if owner, ok := LookupRequestCode("code-live"); !ok || owner != "7" {
		t.Fatalf("expected owner 7, got %q %v", owner, ok)
	}
	if owner, ok := LookupRequestCode("code-live"); !ok || owner != "7" {
		t.Fatalf("lookup must not consume the code, got %q %v", owner, ok)
	}
	if _, ok := LookupRequestCode("code-dead"); ok {
		t.Fatal("expired code should not resolve")
	}
	if _, ok := LookupRequestCode("never-issued"); ok {
		t.Fatal("unknown code should not resolve")
	}
}

func TestSessionRevocationMemory(t *testing.T) {
	RevokeSession("tok-a", time.Now().Add(time.Minute))
	RevokeSession("tok-expired", time.Now().Add(-time.Minute))
	RevokeSession("", time.Now().Add(time.Minute))

	if !IsSessionRevoked("tok-a") {
		t.Fatal("tok-a should be revoked")
	}
	if IsSessionRevoked("tok-expired") {
		t.Fatal("an already expired token is not tracked")
	}
	if IsSessionRevoked("tok-b") {
		t.Fatal("tok-b was never revoked")
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "12", "neo", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "12" || claims.Username != "neo" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := ParseToken("other", token); err == nil {
		t.Fatal("wrong secret should fail")
	}
	expired, _ := GenerateToken("secret", "12", "neo", -time.Minute)
	if _, err := ParseToken("secret", expired); err == nil {
		t.Fatal("expired token should fail")
	}
}

func TestSanitizeName(t *testing.T) {
	if got := SanitizeName("  <b>alice</b><script>x</script> "); got != "alice" {
		t.Fatalf("expected alice, got %q", got)
	}
}
