package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cppla/questmock/models"
)

const (
	defaultEventListLimit = 50
	maxEventListLimit     = 200
)

// EventFilter narrows List; empty fields match everything.
type EventFilter struct {
	UserID    string
	EventType models.EventType
	Status    models.EventStatus
}

// EventService writes platform notifications into the outbox and reads them back.
type EventService struct {
	db         *gorm.DB
	maxRetries int
	now        func() time.Time
}

// NewEventService creates an EventService. maxRetries <= 0 uses the default of 3.
func NewEventService(db *gorm.DB, maxRetries int) *EventService {
	if maxRetries <= 0 {
		maxRetries = models.DefaultEventMaxRetries
	}
	return &EventService{db: db, maxRetries: maxRetries, now: utcNow}
}

// Record appends a pending event using tx, so it commits or rolls back with the
// state change that produced it.
func (s *EventService) Record(tx *gorm.DB, userID string, payload models.EventPayload) (*models.PlatformEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", payload.EventType(), err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	now := s.now()
	event := models.PlatformEvent{
		EventID:       id.String(),
		UserID:        userID,
		EventType:     payload.EventType(),
		EventData:     datatypes.JSON(data),
		Timestamp:     now,
		Status:        models.EventPending,
		MaxRetries:    s.maxRetries,
		NextAttemptAt: now,
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("record %s event: %w", event.EventType, err)
	}

	if err := tx.Model(&models.GameState{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"last_platform_event": string(event.EventType),
			"platform_event_id":   event.EventID,
		}).Error; err != nil {
		return nil, fmt.Errorf("stamp game state: %w", err)
	}
	return &event, nil
}

// Emit validates caller supplied event data against its type and records it.
func (s *EventService) Emit(ctx context.Context, userID string, eventType models.EventType, data json.RawMessage) (*models.PlatformEvent, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	payload, err := models.DecodeEventPayload(eventType, data)
	if err != nil {
		if IsClientError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var event *models.PlatformEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recErr error
		event, recErr = s.Record(tx, userID, payload)
		return recErr
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// List returns events newest first. limit <= 0 means 50.
func (s *EventService) List(ctx context.Context, filter EventFilter, limit int) ([]models.PlatformEvent, error) {
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	if limit > maxEventListLimit {
		limit = maxEventListLimit
	}
	if filter.EventType != "" && !filter.EventType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, filter.EventType)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}

	q := s.db.WithContext(ctx).Model(&models.PlatformEvent{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var events []models.PlatformEvent
	if err := q.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
