package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/questmock/models"
)

// StageView is a catalog stage merged with one user's progress.
type StageView struct {
	StageDefinition
	IsUnlocked  bool       `json:"isUnlocked"`
	IsCompleted bool       `json:"isCompleted"`
	BestScore   int        `json:"bestScore"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// StagePatch carries an optional update for one stage.
type StagePatch struct {
	IsUnlocked  *bool
	IsCompleted *bool
	Score       *int
}

// StatePatch carries an optional update for the game state.
type StatePatch struct {
	CurrentStage *int
	Score        *int
	Lives        *int
	IsPlaying    *bool
	IsPaused     *bool
}

// StageResult is returned when a stage is cleared.
type StageResult struct {
	Stage   StageView           `json:"stage"`
	Rewards models.StageRewards `json:"rewards"`
	Event   string              `json:"eventId"`
}

// GameService keeps game state and stage progress.
type GameService struct {
	db     *gorm.DB
	events *EventService
	now    func() time.Time
}

// NewGameService creates a GameService.
func NewGameService(db *gorm.DB, events *EventService) *GameService {
	return &GameService{db: db, events: events, now: utcNow}
}

// GetState returns the user's game state, creating the starting state on first read.
func (s *GameService) GetState(ctx context.Context, userID string) (*models.GameState, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var state models.GameState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loadErr error
		state, loadErr = loadOrInitState(tx, userID)
		return loadErr
	})
	if err != nil {
		return nil, fmt.Errorf("load game state for %s: %w", userID, err)
	}
	return &state, nil
}

// UpdateState applies patch to the user's game state.
func (s *GameService) UpdateState(ctx context.Context, userID string, patch StatePatch) (*models.GameState, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if patch.Lives != nil && *patch.Lives < 0 {
		return nil, fmt.Errorf("%w: lives must not be negative", ErrValidation)
	}
	if patch.CurrentStage != nil {
		if _, ok := LookupStage(*patch.CurrentStage); !ok {
			return nil, fmt.Errorf("%w: unknown stage %d", ErrValidation, *patch.CurrentStage)
		}
	}

	var state models.GameState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if state, err = loadOrInitState(tx, userID); err != nil {
			return err
		}
		if patch.CurrentStage != nil {
			state.CurrentStage = *patch.CurrentStage
		}
		if patch.Score != nil {
			state.Score = *patch.Score
		}
		if patch.Lives != nil {
			state.Lives = *patch.Lives
		}
		if patch.IsPlaying != nil {
			state.IsPlaying = *patch.IsPlaying
		}
		if patch.IsPaused != nil {
			state.IsPaused = *patch.IsPaused
		}
		return tx.Save(&state).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update game state for %s: %w", userID, err)
	}
	return &state, nil
}

// UpdateScore sets the score, unlocks every stage the score qualifies for and
// records a score_update event.
func (s *GameService) UpdateScore(ctx context.Context, userID string, score, stageID int) (*models.GameState, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if score < 0 {
		return nil, fmt.Errorf("%w: score must not be negative", ErrValidation)
	}

	var state models.GameState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if state, err = loadOrInitState(tx, userID); err != nil {
			return err
		}
		state.Score = score
		if err := tx.Save(&state).Error; err != nil {
			return err
		}
		for _, def := range stageCatalog {
			if score < def.RequiredScore {
				continue
			}
			unlocked := true
			if _, err := upsertStage(tx, userID, def.ID, StagePatch{IsUnlocked: &unlocked}, s.now()); err != nil {
				return err
			}
		}
		_, err = s.events.Record(tx, userID, models.ScoreUpdateEvent{Score: score, StageID: stageID, UpdatedAt: s.now()})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update score for %s: %w", userID, err)
	}
	// Record stamps the event columns after state was loaded
	return s.GetState(ctx, userID)
}

// ListStages joins the stage catalog with the user's progress. Stage 1 is
// always unlocked.
func (s *GameService) ListStages(ctx context.Context, userID string) ([]StageView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var rows []models.StageProgress
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load stage progress: %w", err)
	}
	byID := make(map[int]models.StageProgress, len(rows))
	for _, r := range rows {
		byID[r.StageID] = r
	}

	views := make([]StageView, 0, len(stageCatalog))
	for _, def := range stageCatalog {
		views = append(views, stageView(def, byID[def.ID]))
	}
	return views, nil
}

// UpsertStage applies patch to (userID, stageID). Stages outside the catalog
// come back as a zeroed stub and nothing is stored.
func (s *GameService) UpsertStage(ctx context.Context, userID string, stageID int, patch StagePatch) (*StageView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	def, ok := LookupStage(stageID)
	if !ok {
		stub := unknownStage(stageID)
		return &stub, nil
	}

	var row models.StageProgress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = upsertStage(tx, userID, stageID, patch, s.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update stage %d for %s: %w", stageID, userID, err)
	}
	v := stageView(def, row)
	return &v, nil
}

// CompleteStage marks a stage cleared, unlocks the next one, moves the game
// state on to it and records a stage_complete event carrying the rewards.
// An unknown stage yields a zeroed result with no event.
func (s *GameService) CompleteStage(ctx context.Context, userID string, stageID, score, timeSpent int) (*StageResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if score < 0 {
		return nil, fmt.Errorf("%w: score must not be negative", ErrValidation)
	}
	def, ok := LookupStage(stageID)
	if !ok {
		return &StageResult{Stage: unknownStage(stageID)}, nil
	}

	rewards := models.StageRewards{Exp: score * 10, Coins: score / 10}
	result := &StageResult{Rewards: rewards}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		unlocked, completed := true, true
		row, err := upsertStage(tx, userID, stageID, StagePatch{IsUnlocked: &unlocked, IsCompleted: &completed, Score: &score}, now)
		if err != nil {
			return err
		}
		state, err := loadOrInitState(tx, userID)
		if err != nil {
			return err
		}
		if next, ok := LookupStage(stageID + 1); ok {
			if _, err := upsertStage(tx, userID, next.ID, StagePatch{IsUnlocked: &unlocked}, now); err != nil {
				return err
			}
			if state.CurrentStage < next.ID {
				state.CurrentStage = next.ID
			}
		}
		state.Score = score
		if err := tx.Save(&state).Error; err != nil {
			return err
		}
		event, err := s.events.Record(tx, userID, models.StageCompleteEvent{
			StageID:     stageID,
			Score:       score,
			TimeSpent:   timeSpent,
			Rewards:     rewards,
			CompletedAt: now,
		})
		if err != nil {
			return err
		}
		result.Stage = stageView(def, row)
		result.Event = event.EventID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete stage %d for %s: %w", stageID, userID, err)
	}
	return result, nil
}

func upsertStage(tx *gorm.DB, userID string, stageID int, patch StagePatch, now time.Time) (models.StageProgress, error) {
	var row models.StageProgress
	err := tx.Where("user_id = ? AND stage_id = ?", userID, stageID).First(&row).Error
	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !isNew {
		return row, err
	}
	if isNew {
		row = models.StageProgress{UserID: userID, StageID: stageID}
	}

	wasCompleted := row.IsCompleted
	if patch.IsUnlocked != nil {
		row.IsUnlocked = *patch.IsUnlocked
	}
	if patch.IsCompleted != nil {
		row.IsCompleted = *patch.IsCompleted
	}
	if patch.Score != nil && *patch.Score > row.BestScore {
		row.BestScore = *patch.Score
	}
	if row.IsCompleted && !wasCompleted && row.CompletedAt == nil {
		row.CompletedAt = &now
	}

	if isNew {
		return row, tx.Create(&row).Error
	}
	return row, tx.Save(&row).Error
}

func loadOrInitState(tx *gorm.DB, userID string) (models.GameState, error) {
	var state models.GameState
	err := tx.Where("user_id = ?", userID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.NewGameState(userID)
		return state, tx.Create(&state).Error
	}
	return state, err
}

// unknownStage is the zeroed view served for ids outside the catalog.
func unknownStage(id int) StageView {
	return StageView{StageDefinition: StageDefinition{ID: id}}
}

func stageView(def StageDefinition, row models.StageProgress) StageView {
	return StageView{
		StageDefinition: def,
		IsUnlocked:      row.IsUnlocked || def.RequiredScore == 0,
		IsCompleted:     row.IsCompleted,
		BestScore:       row.BestScore,
		CompletedAt:     row.CompletedAt,
	}
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	return nil
}
