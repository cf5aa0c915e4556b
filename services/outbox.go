package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cppla/questmock/models"
	"github.com/cppla/questmock/pkg/lifecycle"
	"github.com/cppla/questmock/utils"
)

// maxErrorMessageBytes matches the size of PlatformEvent.ErrorMessage.
const maxErrorMessageBytes = 512

// EventSender delivers one outbox event to the platform and returns its response body.
type EventSender interface {
	SendEvent(ctx context.Context, event *models.PlatformEvent) ([]byte, error)
}

// DispatcherConfig tunes the outbox drain loop.
type DispatcherConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	RatePerSecond int
	// Lease after which a row stuck in processing is claimed again.
	Lease time.Duration
}

func (c *DispatcherConfig) withDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 10
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
}

// Dispatcher drains due outbox rows through an EventSender with retry and backoff.
type Dispatcher struct {
	db      *gorm.DB
	sender  EventSender
	cfg     DispatcherConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(db *gorm.DB, sender EventSender, cfg DispatcherConfig) *Dispatcher {
	cfg.withDefaults()
	return &Dispatcher{
		db:      db,
		sender:  sender,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		now:     utcNow,
	}
}

// Run drains the outbox until the handle is cancelled.
func (d *Dispatcher) Run(h *lifecycle.Handle) {
	utils.Sugar.Infof("outbox dispatcher started poll=%s batch=%d", d.cfg.PollInterval, d.cfg.BatchSize)
	for {
		n, err := d.DrainOnce(h.Ctx())
		if err != nil && !errors.Is(err, context.Canceled) {
			utils.Sugar.Errorf("outbox drain failed: %v", err)
		}
		// a full batch means more rows are probably due
		if err == nil && n == d.cfg.BatchSize {
			continue
		}
		if h.Sleep(d.cfg.PollInterval) != nil {
			utils.Sugar.Info("outbox dispatcher stopped")
			return
		}
	}
}

// DrainOnce claims one batch of due events and attempts each. It returns the
// number of events attempted.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := d.now()
	events, err := d.claimDue(ctx, now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range events {
		if err := d.limiter.Wait(ctx); err != nil {
			return processed, err
		}
		event := &events[i]
		body, sendErr := d.sender.SendEvent(ctx, event)
		if sendErr != nil {
			err = d.markRetry(ctx, event, sendErr)
		} else {
			err = d.markSent(ctx, event, body)
		}
		if err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func (d *Dispatcher) claimDue(ctx context.Context, now time.Time) ([]models.PlatformEvent, error) {
	staleBefore := now.Add(-d.cfg.Lease)
	var candidates []models.PlatformEvent
	err := d.db.WithContext(ctx).
		Where("(status IN ? AND next_attempt_at <= ?) OR (status = ? AND updated_at <= ?)",
			[]models.EventStatus{models.EventPending, models.EventRetry}, now,
			models.EventProcessing, staleBefore).
		Order("next_attempt_at").Order("id").
		Limit(d.cfg.BatchSize).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("list due events: %w", err)
	}

	claimed := make([]models.PlatformEvent, 0, len(candidates))
	for _, c := range candidates {
		q := d.db.WithContext(ctx).Model(&models.PlatformEvent{}).Where("id = ? AND status = ?", c.ID, c.Status)
		if c.Status == models.EventProcessing {
			q = q.Where("updated_at <= ?", staleBefore)
		}
		res := q.Updates(map[string]interface{}{"status": models.EventProcessing, "updated_at": now})
		if res.Error != nil {
			return nil, fmt.Errorf("claim event %s: %w", c.EventID, res.Error)
		}
		// another dispatcher got there first
		if res.RowsAffected != 1 {
			continue
		}
		c.Status = models.EventProcessing
		claimed = append(claimed, c)
	}
	return claimed, nil
}

func (d *Dispatcher) markSent(ctx context.Context, event *models.PlatformEvent, body []byte) error {
	now := d.now()
	updates := map[string]interface{}{
		"status":        models.EventSent,
		"sent_at":       now,
		"error_message": "",
		"updated_at":    now,
	}
	if len(body) > 0 {
		updates["platform_response"] = responseJSON(body)
	}
	if err := d.db.WithContext(ctx).Model(&models.PlatformEvent{}).Where("id = ?", event.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark event %s sent: %w", event.EventID, err)
	}
	utils.Sugar.Debugf("event delivered id=%s type=%s user=%s", event.EventID, event.EventType, event.UserID)
	return nil
}

func (d *Dispatcher) markRetry(ctx context.Context, event *models.PlatformEvent, cause error) error {
	now := d.now()
	attempt := event.RetryCount + 1
	maxRetries := event.MaxRetries
	if maxRetries <= 0 {
		maxRetries = models.DefaultEventMaxRetries
	}

	status := models.EventRetry
	next := now.Add(d.backoff(attempt))
	if attempt >= maxRetries {
		status = models.EventFailed
		next = now
	}
	msg := truncateErrorMessage(cause.Error(), maxErrorMessageBytes)

	err := d.db.WithContext(ctx).Model(&models.PlatformEvent{}).Where("id = ?", event.ID).Updates(map[string]interface{}{
		"status":          status,
		"retry_count":     attempt,
		"next_attempt_at": next,
		"error_message":   msg,
		"updated_at":      now,
	}).Error
	if err != nil {
		return fmt.Errorf("mark event %s for retry: %w", event.EventID, err)
	}
	utils.Sugar.Warnf("event delivery failed id=%s type=%s attempt=%d/%d status=%s err=%v",
		event.EventID, event.EventType, attempt, maxRetries, status, cause)
	return nil
}

// truncateErrorMessage cuts msg to at most limit bytes of valid UTF-8.
func truncateErrorMessage(msg string, limit int) string {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// backoff doubles from BaseBackoff per attempt and is capped at MaxBackoff.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	b := d.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		b *= 2
		if b >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	if b > d.cfg.MaxBackoff {
		return d.cfg.MaxBackoff
	}
	return b
}

// responseJSON keeps non-JSON platform replies storable in a JSON column.
func responseJSON(body []byte) datatypes.JSON {
	if json.Valid(body) {
		return datatypes.JSON(body)
	}
	quoted, _ := json.Marshal(string(body))
	return datatypes.JSON(quoted)
}
