package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEventType is returned for event types outside the closed set.
var ErrUnknownEventType = errors.New("unknown event type")

// EventPayload is the closed set of shapes an event's data may take.
type EventPayload interface {
	EventType() EventType
}

// LoginEvent is recorded on every login, carrying any platform link data.
type LoginEvent struct {
	Username         string    `json:"username"`
	LoginTime        time.Time `json:"loginTime"`
	IsPlatformLinked bool      `json:"isPlatformLinked"`
	PlatformID       *int64    `json:"platformId,omitempty"`
	MemberID         *int64    `json:"memberId,omitempty"`
	BappID           *int64    `json:"bappId,omitempty"`
	PlatformUUID     *string   `json:"platformUuid,omitempty"`
}

// LogoutEvent is recorded when a session ends.
type LogoutEvent struct {
	Username   string    `json:"username,omitempty"`
	LogoutTime time.Time `json:"logoutTime"`
}

// StageCompleteEvent is recorded when a stage is cleared.
type StageCompleteEvent struct {
	StageID     int          `json:"stageId"`
	Score       int          `json:"score"`
	TimeSpent   int          `json:"timeSpent"`
	Rewards     StageRewards `json:"rewards"`
	CompletedAt time.Time    `json:"completedAt"`
}

// StageRewards is what clearing a stage grants.
type StageRewards struct {
	Exp   int `json:"exp"`
	Coins int `json:"coins"`
}

// QuestCompleteEvent is recorded on a quest's first transition to complete.
type QuestCompleteEvent struct {
	QuestID     string       `json:"questId"`
	Progress    int          `json:"progress"`
	Rewards     StageRewards `json:"rewards"`
	CompletedAt time.Time    `json:"completedAt"`
}

// ScoreUpdateEvent is recorded when the game reports a new score.
type ScoreUpdateEvent struct {
	Score     int       `json:"score"`
	StageID   int       `json:"stageId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (LoginEvent) EventType() EventType         { return EventLogin }
func (LogoutEvent) EventType() EventType        { return EventLogout }
func (StageCompleteEvent) EventType() EventType { return EventStageComplete }
func (QuestCompleteEvent) EventType() EventType { return EventQuestComplete }
func (ScoreUpdateEvent) EventType() EventType   { return EventScoreUpdate }

// DecodeEventPayload parses raw event data into the shape registered for t.
// Empty data decodes to the zero payload.
func DecodeEventPayload(t EventType, raw []byte) (EventPayload, error) {
	var p EventPayload
	switch t {
	case EventLogin:
		p = &LoginEvent{}
	case EventLogout:
		p = &LogoutEvent{}
	case EventStageComplete:
		p = &StageCompleteEvent{}
	case EventQuestComplete:
		p = &QuestCompleteEvent{}
	case EventScoreUpdate:
		p = &ScoreUpdateEvent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}
