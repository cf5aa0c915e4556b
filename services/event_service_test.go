package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cppla/questmock/models"
)

func TestEmitValidatesPayload(t *testing.T) {
	gdb := setupServiceTestDB(t, "event-emit")
	svc := NewEventService(gdb, 0)
	ctx := context.Background()

	event, err := svc.Emit(ctx, "1", models.EventStageComplete, json.RawMessage(`{"stageId":2,"score":150,"timeSpent":30}`))
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if event.Status != models.EventPending || event.EventID == "" || event.MaxRetries != models.DefaultEventMaxRetries {
		t.Fatalf("unexpected event: %+v", event)
	}

	if _, err := svc.Emit(ctx, "1", models.EventType("teleport"), nil); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
	if _, err := svc.Emit(ctx, "1", models.EventScoreUpdate, json.RawMessage(`{"score":"lots"}`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for malformed data, got %v", err)
	}
	if _, err := svc.Emit(ctx, "", models.EventLogin, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty user, got %v", err)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	gdb := setupServiceTestDB(t, "event-list")
	svc := NewEventService(gdb, 0)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, e := range []struct {
		user string
		typ  models.EventType
	}{
		{"1", models.EventLogin},
		{"1", models.EventScoreUpdate},
		{"2", models.EventLogin},
		{"1", models.EventLogout},
	} {
		if _, err := svc.Emit(ctx, e.user, e.typ, nil); err != nil {
			t.Fatalf("emit %s: %v", e.typ, err)
		}
	}

	all, err := svc.List(ctx, EventFilter{UserID: "1"}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events for user 1, got %d", len(all))
	}
	if all[0].EventType != models.EventLogout || all[2].EventType != models.EventLogin {
		t.Fatalf("expected newest first, got %s..%s", all[0].EventType, all[2].EventType)
	}

	logins, err := svc.List(ctx, EventFilter{EventType: models.EventLogin}, 0)
	if err != nil {
		t.Fatalf("list logins: %v", err)
	}
	if len(logins) != 2 {
		t.Fatalf("expected 2 logins, got %d", len(logins))
	}

	limited, err := svc.List(ctx, EventFilter{}, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d %v", len(limited), err)
	}

	if _, err := svc.List(ctx, EventFilter{EventType: "bogus"}, 0); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
	if _, err := svc.List(ctx, EventFilter{Status: "lost"}, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for bad status, got %v", err)
	}
}
