package models

import "time"

// QuestProgress tracks one user's progress on one catalog quest.
type QuestProgress struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	UserID      string     `gorm:"size:32;not null;index:idx_quest_progress_user_quest,unique" json:"userId"`
	QuestID     string     `gorm:"size:32;not null;index:idx_quest_progress_user_quest,unique" json:"questId"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`
	IsCompleted bool       `gorm:"not null;default:false" json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// StageProgress tracks one user's state on one catalog stage.
type StageProgress struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	UserID      string     `gorm:"size:32;not null;index:idx_stage_progress_user_stage,unique" json:"userId"`
	StageID     int        `gorm:"not null;index:idx_stage_progress_user_stage,unique" json:"stageId"`
	IsUnlocked  bool       `gorm:"not null;default:false" json:"isUnlocked"`
	IsCompleted bool       `gorm:"not null;default:false" json:"isCompleted"`
	BestScore   int        `gorm:"not null;default:0" json:"bestScore"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// GameState is the single running game snapshot kept per user.
type GameState struct {
	ID                uint      `gorm:"primaryKey" json:"-"`
	UserID            string    `gorm:"size:32;not null;uniqueIndex" json:"userId"`
	CurrentStage      int       `gorm:"not null" json:"currentStage"`
	Score             int       `gorm:"not null;default:0" json:"score"`
	Lives             int       `gorm:"not null" json:"lives"`
	IsPlaying         bool      `gorm:"not null;default:false" json:"isPlaying"`
	IsPaused          bool      `gorm:"not null;default:false" json:"isPaused"`
	LastPlatformEvent string    `gorm:"size:32" json:"lastPlatformEvent,omitempty"`
	PlatformEventID   string    `gorm:"size:64" json:"platformEventId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// NewGameState returns the state a user starts with.
func NewGameState(userID string) GameState {
	return GameState{UserID: userID, CurrentStage: 1, Score: 0, Lives: 3}
}
