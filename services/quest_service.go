package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/questmock/models"
)

// QuestView is a catalog quest merged with one user's progress.
type QuestView struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	Rewards     QuestRewards `json:"rewards"`
	Progress    int          `json:"progress"`
	MaxProgress int          `json:"maxProgress"`
	IsCompleted bool         `json:"isCompleted"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// QuestCheck is the platform's view of one quest.
type QuestCheck struct {
	ID           int  `json:"id"`
	TotalTimes   int  `json:"totalTimes"`
	CurrentTimes int  `json:"currentTimes"`
	Complete     bool `json:"complete"`
}

// QuestService tracks per-user quest progress against the static catalog.
type QuestService struct {
	db     *gorm.DB
	events *EventService
	now    func() time.Time
}

// NewQuestService creates a QuestService.
func NewQuestService(db *gorm.DB, events *EventService) *QuestService {
	return &QuestService{db: db, events: events, now: utcNow}
}

// UpsertProgress writes progress and/or completion for (userID, questID).
// Nil fields keep their stored values. The first transition to complete
// stamps CompletedAt and records a quest_complete event.
func (s *QuestService) UpsertProgress(ctx context.Context, userID, questID string, progress *int, completed *bool) (*models.QuestProgress, error) {
	userID = strings.TrimSpace(userID)
	key := QuestKey(questID)
	if userID == "" || key == "" {
		return nil, fmt.Errorf("%w: user id and quest id are required", ErrValidation)
	}
	if progress != nil && *progress < 0 {
		return nil, fmt.Errorf("%w: progress must not be negative", ErrValidation)
	}

	var (
		row models.QuestProgress
		err error
	)
	// two first writes for the same pair race on the unique index; the loser retries as an update
	for attempt := 0; attempt < 2; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var upsertErr error
			row, upsertErr = s.upsert(tx, userID, key, progress, completed)
			return upsertErr
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("upsert quest %s for %s: %w", key, userID, err)
	}
	return &row, nil
}

func (s *QuestService) upsert(tx *gorm.DB, userID, key string, progress *int, completed *bool) (models.QuestProgress, error) {
	var row models.QuestProgress
	err := tx.Where("user_id = ? AND quest_id = ?", userID, key).First(&row).Error
	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !isNew {
		return row, err
	}
	if isNew {
		row = models.QuestProgress{UserID: userID, QuestID: key}
	}

	wasCompleted := row.IsCompleted
	if progress != nil {
		row.Progress = *progress
	}
	if completed != nil {
		row.IsCompleted = *completed
	}
	now := s.now()
	if row.IsCompleted && !wasCompleted && row.CompletedAt == nil {
		row.CompletedAt = &now
	}

	if isNew {
		err = tx.Create(&row).Error
	} else {
		err = tx.Save(&row).Error
	}
	if err != nil {
		return row, err
	}

	if row.IsCompleted && !wasCompleted {
		rewards := QuestRewards{}
		if def, ok := LookupQuest(key); ok {
			rewards = def.Rewards
		}
		if _, err := s.events.Record(tx, userID, models.QuestCompleteEvent{
			QuestID:     key,
			Progress:    row.Progress,
			Rewards:     models.StageRewards{Exp: rewards.Experience, Coins: rewards.Coins},
			CompletedAt: now,
		}); err != nil {
			return row, err
		}
	}
	return row, nil
}

// ListForUser joins the quest catalog with userID's stored progress.
func (s *QuestService) ListForUser(ctx context.Context, userID string) ([]QuestView, error) {
	byKey, err := s.progressByKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]QuestView, 0, len(questCatalog))
	for _, q := range questCatalog {
		v := QuestView{
			ID:          q.Key(),
			Title:       q.Name,
			Description: q.Description,
			Type:        q.Type,
			Rewards:     q.Rewards,
			MaxProgress: q.TotalTimes,
		}
		if p, ok := byKey[q.Key()]; ok {
			v.Progress = p.Progress
			v.IsCompleted = p.IsCompleted
			v.CompletedAt = p.CompletedAt
		}
		views = append(views, v)
	}
	return views, nil
}

// CheckAgainstCatalog reports progress for the requested quest ids. Ids not
// in the catalog come back as a zeroed stub.
func (s *QuestService) CheckAgainstCatalog(ctx context.Context, userID string, questIDs []int) ([]QuestCheck, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: uuid is required", ErrValidation)
	}
	byKey, err := s.progressByKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	checks := make([]QuestCheck, 0, len(questIDs))
	for _, id := range questIDs {
		c := QuestCheck{ID: id}
		if def, ok := LookupQuest(strconv.Itoa(id)); ok {
			c.TotalTimes = def.TotalTimes
			if p, ok := byKey[def.Key()]; ok {
				c.CurrentTimes = p.Progress
				c.Complete = p.IsCompleted
			}
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// CompleteQuest marks a catalog quest complete at its target progress and
// returns the quest's rewards. Quests outside the catalog come back as an
// unsaved zero row with no rewards.
func (s *QuestService) CompleteQuest(ctx context.Context, userID, questID string) (*models.QuestProgress, QuestRewards, error) {
	userID = strings.TrimSpace(userID)
	key := QuestKey(questID)
	if userID == "" || key == "" {
		return nil, QuestRewards{}, fmt.Errorf("%w: user id and quest id are required", ErrValidation)
	}
	def, ok := LookupQuest(key)
	if !ok {
		return &models.QuestProgress{UserID: userID, QuestID: key}, QuestRewards{}, nil
	}
	target := def.TotalTimes
	done := true
	row, err := s.UpsertProgress(ctx, userID, def.Key(), &target, &done)
	if err != nil {
		return nil, QuestRewards{}, err
	}
	return row, def.Rewards, nil
}

// StartQuest marks the moment a user begins questing.
func (s *QuestService) StartQuest(userID string) (time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return time.Time{}, fmt.Errorf("%w: uuid is required", ErrValidation)
	}
	return s.now(), nil
}

func (s *QuestService) progressByKey(ctx context.Context, userID string) (map[string]models.QuestProgress, error) {
	var rows []models.QuestProgress
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load quest progress: %w", err)
	}
	byKey := make(map[string]models.QuestProgress, len(rows))
	for _, r := range rows {
		byKey[r.QuestID] = r
	}
	return byKey, nil
}
