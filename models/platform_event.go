package models

import (
	"time"

	"gorm.io/datatypes"
)

// EventType enumerates the notifications the platform understands.
type EventType string

const (
	EventLogin         EventType = "login"
	EventLogout        EventType = "logout"
	EventStageComplete EventType = "stage_complete"
	EventQuestComplete EventType = "quest_complete"
	EventScoreUpdate   EventType = "score_update"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventLogin, EventLogout, EventStageComplete, EventQuestComplete, EventScoreUpdate:
		return true
	}
	return false
}

// EventStatus is the delivery state of an outbox row.
type EventStatus string

const (
	EventPending    EventStatus = "pending"
	EventProcessing EventStatus = "processing"
	EventSent       EventStatus = "sent"
	EventFailed     EventStatus = "failed"
	EventRetry      EventStatus = "retry"
)

// Valid reports whether s is a status callers may filter by.
func (s EventStatus) Valid() bool {
	switch s {
	case EventPending, EventProcessing, EventSent, EventFailed, EventRetry:
		return true
	}
	return false
}

// DefaultEventMaxRetries bounds delivery attempts for a single event.
const DefaultEventMaxRetries = 3

// PlatformEvent is an outbox row: written alongside the state change it
// describes and drained later by the dispatcher.
type PlatformEvent struct {
	ID               uint           `gorm:"primaryKey" json:"-"`
	EventID          string         `gorm:"size:64;uniqueIndex;not null" json:"eventId"`
	UserID           string         `gorm:"size:32;not null;index:idx_event_user_ts" json:"userId"`
	EventType        EventType      `gorm:"size:32;not null;index:idx_event_type_status" json:"eventType"`
	EventData        datatypes.JSON `json:"eventData"`
	Timestamp        time.Time      `gorm:"not null;index:idx_event_user_ts" json:"timestamp"`
	Status           EventStatus    `gorm:"size:16;not null;index:idx_event_type_status;index:idx_event_due" json:"status"`
	RetryCount       int            `gorm:"not null;default:0" json:"retryCount"`
	MaxRetries       int            `gorm:"not null" json:"maxRetries"`
	NextAttemptAt    time.Time      `gorm:"not null;index:idx_event_due" json:"nextAttemptAt"`
	SentAt           *time.Time     `json:"sentAt,omitempty"`
	PlatformResponse datatypes.JSON `json:"platformResponse,omitempty"`
	ErrorMessage     string         `gorm:"size:512" json:"errorMessage,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}
