package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cppla/questmock/models"
)

func TestExtractRequestCodeShapes(t *testing.T) {
	cases := map[string]string{
		`{"code":"a1"}`:                   "a1",
		`{"payload":"b2"}`:                "b2",
		`{"payload":{"code":"c3"}}`:       "c3",
		`{"data":{"code":"d4"}}`:          "d4",
		`{"data":{"data":{"code":"e5"}}}`: "e5",
		`{"requestCode":"f6"}`:            "f6",
		`{"message":"nothing here"}`:      "",
		`not json`:                        "",
	}
	for body, want := range cases {
		if got := extractRequestCode([]byte(body)); got != want {
			t.Fatalf("extractRequestCode(%s) = %q, want %q", body, got, want)
		}
	}
}

func TestPlatformClientRequestCode(t *testing.T) {
	var gotAuth, gotUUID, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUUID = r.URL.Query().Get("uuid")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"payload":{"code":"tmp-123"}}`)
	}))
	defer srv.Close()

	client := NewPlatformClient(srv.URL+"/", "raw-token", "", time.Second)
	code, err := client.RequestCode(context.Background(), "42")
	if err != nil {
		t.Fatalf("request code: %v", err)
	}
	if code != "tmp-123" {
		t.Fatalf("unexpected code %q", code)
	}
	if gotPath != "/m/auth/v1/bapp/request-code" || gotUUID != "42" {
		t.Fatalf("unexpected request path=%s uuid=%s", gotPath, gotUUID)
	}
	if gotAuth != "raw-token" {
		t.Fatalf("authorization should be sent verbatim, got %q", gotAuth)
	}
}

func TestPlatformClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "uuid=empty") {
			_, _ = io.WriteString(w, `{}`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewPlatformClient(srv.URL, "", srv.URL+"/events", time.Second)
	if _, err := client.RequestCode(context.Background(), "1"); !errors.Is(err, ErrPlatformUnavailable) {
		t.Fatalf("expected ErrPlatformUnavailable on 502, got %v", err)
	}
	if _, err := client.RequestCode(context.Background(), "empty"); !errors.Is(err, ErrPlatformUnavailable) {
		t.Fatalf("expected ErrPlatformUnavailable without a code, got %v", err)
	}
	if _, err := client.SendEvent(context.Background(), &models.PlatformEvent{EventID: "e"}); !errors.Is(err, ErrPlatformUnavailable) {
		t.Fatalf("expected ErrPlatformUnavailable from events endpoint, got %v", err)
	}
}

func TestPlatformClientSendEvent(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"received":true}`)
	}))
	defer srv.Close()

	client := NewPlatformClient("", "tok", srv.URL, time.Second)
	if client.CanRequestCodes() || !client.CanSendEvents() {
		t.Fatal("capabilities should follow configured urls")
	}
	body, err := client.SendEvent(context.Background(), &models.PlatformEvent{
		EventID:   "evt-1",
		UserID:    "9",
		EventType: models.EventScoreUpdate,
		EventData: []byte(`{"score":10}`),
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("send event: %v", err)
	}
	if string(body) != `{"received":true}` {
		t.Fatalf("unexpected response body %s", body)
	}
	if got["eventId"] != "evt-1" || got["userId"] != "9" || got["eventType"] != "score_update" {
		t.Fatalf("unexpected outbound event: %v", got)
	}
	data, ok := got["eventData"].(map[string]interface{})
	if !ok || data["score"] != float64(10) {
		t.Fatalf("event data should be embedded as an object: %v", got["eventData"])
	}
}

func TestPlatformServiceLocalCodes(t *testing.T) {
	svc := NewPlatformService(NewPlatformClient("", "", "", 0), "https://platform.example/", 0)
	ctx := context.Background()

	res, err := svc.RequestCode(ctx, "12")
	if err != nil {
		t.Fatalf("request code: %v", err)
	}
	if res.TemporaryCode == "" {
		t.Fatal("expected a locally minted code")
	}
	if res.Outlink != "https://platform.example/?requestCode="+res.TemporaryCode {
		t.Fatalf("unexpected outlink %s", res.Outlink)
	}
	if d := time.Until(res.ExpiresAt); d < 14*time.Minute || d > 15*time.Minute+time.Second {
		t.Fatalf("expected 15 minute expiry, got %s", d)
	}

	v, err := svc.Validate(res.TemporaryCode, "")
	if err != nil || !v.Valid || v.UUID != "12" {
		t.Fatalf("issued code should validate to its owner, got %+v %v", v, err)
	}
	if v, _ := svc.Validate(res.TemporaryCode, "13"); v.Valid {
		t.Fatal("code must not validate for another uuid")
	}
	if v, _ := svc.Validate("unknown-code", ""); v.Valid {
		t.Fatal("unknown code must not validate")
	}

	if _, err := svc.RequestCode(ctx, " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPlatformServiceValidateUUID(t *testing.T) {
	svc := NewPlatformService(nil, "", 0)

	cases := map[string]bool{"1": true, "12345": true, "0": false, "-3": false, "abc": false}
	for in, want := range cases {
		v, err := svc.Validate("", in)
		if err != nil {
			t.Fatalf("validate %q: %v", in, err)
		}
		if v.Valid != want {
			t.Fatalf("validate %q = %v, want %v", in, v.Valid, want)
		}
	}
	if _, err := svc.Validate("", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error when nothing is supplied, got %v", err)
	}
}
