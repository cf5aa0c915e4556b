package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cppla/questmock/models"
	"github.com/cppla/questmock/utils"
)

const (
	specialItemID     = "special_item"
	statusCachePrefix = "cache:attendance:status:"
	statusCacheTTL    = 10 * time.Minute
)

// statusCache holds computed attendance statuses. Entries are keyed by a
// per-user generation that every check-in advances.
type statusCache interface {
	Generation(ctx context.Context, userID string) int64
	Advance(ctx context.Context, userID string)
	Get(ctx context.Context, key string, out *AttendanceStatus) bool
	Set(ctx context.Context, key string, status *AttendanceStatus)
}

type redisStatusCache struct{}

func statusGenerationKey(userID string) string {
	return statusCachePrefix + userID + ":gen"
}

func statusCacheKey(userID string, gen int64, day string) string {
	return fmt.Sprintf("%s%s:%d:%s", statusCachePrefix, userID, gen, day)
}

func (redisStatusCache) Generation(ctx context.Context, userID string) int64 {
	return utils.CacheVersion(ctx, statusGenerationKey(userID))
}

func (redisStatusCache) Advance(ctx context.Context, userID string) {
	utils.CacheBumpVersion(ctx, statusGenerationKey(userID), statusCacheTTL)
}

func (redisStatusCache) Get(ctx context.Context, key string, out *AttendanceStatus) bool {
	return utils.CacheGetJSON(ctx, key, out)
}

func (redisStatusCache) Set(ctx context.Context, key string, status *AttendanceStatus) {
	utils.CacheSetJSON(ctx, key, status, statusCacheTTL)
}

// RewardForStreak returns the payout for a check-in that brings the streak to n days.
func RewardForStreak(n int) models.Rewards {
	switch {
	case n >= 7:
		return models.Rewards{Exp: 200, Coins: 500, Items: []models.RewardItem{{ItemID: specialItemID, Quantity: 1}}}
	case n >= 3:
		return models.Rewards{Exp: 100, Coins: 250, Items: []models.RewardItem{}}
	default:
		return models.Rewards{Exp: 50, Coins: 100, Items: []models.RewardItem{}}
	}
}

// DayStatus is one entry of the weekly attendance window.
type DayStatus struct {
	Date     string          `json:"date"`
	Attended bool            `json:"attended"`
	Rewards  *models.Rewards `json:"rewards"`
}

// AttendanceStatus summarises a user's attendance as of a reference day.
type AttendanceStatus struct {
	TodayAttended   bool        `json:"todayAttended"`
	ConsecutiveDays int         `json:"consecutiveDays"`
	TotalDays       int         `json:"totalDays"`
	WeeklyStatus    []DayStatus `json:"weeklyStatus"`
	CanAttendToday  bool        `json:"canAttendToday"`
}

// AttendanceService keeps the per-day check-in ledger.
type AttendanceService struct {
	db    *gorm.DB
	loc   *time.Location
	now   func() time.Time
	cache statusCache
}

// NewAttendanceService creates an AttendanceService. Days roll over at midnight in loc (UTC when nil).
func NewAttendanceService(db *gorm.DB, loc *time.Location) *AttendanceService {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceService{db: db, loc: loc, now: time.Now, cache: redisStatusCache{}}
}

// Today returns the current day as YYYY-MM-DD.
func (s *AttendanceService) Today() string {
	return dayOf(s.now(), s.loc)
}

// CheckIn records attendance for userID on day. A second call for the same
// day fails with ErrAlreadyAttended.
func (s *AttendanceService) CheckIn(ctx context.Context, userID, day string) (*models.AttendanceRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: uuid is required", ErrValidation)
	}
	day, err := NormalizeDay(day)
	if err != nil {
		return nil, err
	}

	var record models.AttendanceRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.AttendanceRecord{}).
			Where("user_id = ? AND attendance_date = ?", userID, day).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyAttended
		}

		streak := 1
		var prev models.AttendanceRecord
		err := tx.Where("user_id = ? AND attendance_date = ?", userID, shiftDay(day, -1)).First(&prev).Error
		switch {
		case err == nil:
			streak = prev.ConsecutiveDays + 1
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		var total int64
		if err := tx.Model(&models.AttendanceRecord{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
			return err
		}

		record = models.AttendanceRecord{
			UserID:          userID,
			AttendanceDate:  day,
			ConsecutiveDays: streak,
			TotalDays:       int(total) + 1,
			Rewards:         datatypes.NewJSONType(RewardForStreak(streak)),
			AttendedAt:      s.now(),
		}
		return tx.Create(&record).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = ErrAlreadyAttended
	}
	if err != nil {
		if errors.Is(err, ErrAlreadyAttended) {
			return nil, err
		}
		return nil, fmt.Errorf("check in %s on %s: %w", userID, day, err)
	}

	s.cache.Advance(ctx, userID)
	utils.Sugar.Infof("attendance recorded user=%s day=%s streak=%d total=%d", userID, day, record.ConsecutiveDays, record.TotalDays)
	return &record, nil
}

// Find returns the record for (userID, day), or nil when there is none.
func (s *AttendanceService) Find(ctx context.Context, userID, day string) (*models.AttendanceRecord, error) {
	day, err := NormalizeDay(day)
	if err != nil {
		return nil, err
	}
	var record models.AttendanceRecord
	err = s.db.WithContext(ctx).Where("user_id = ? AND attendance_date = ?", userID, day).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance %s on %s: %w", userID, day, err)
	}
	return &record, nil
}

// HasAttended reports whether userID checked in on day.
func (s *AttendanceService) HasAttended(ctx context.Context, userID, day string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, fmt.Errorf("%w: uuid is required", ErrValidation)
	}
	record, err := s.Find(ctx, userID, day)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// Status reports attendance for the seven days ending at refDay.
func (s *AttendanceService) Status(ctx context.Context, userID, refDay string) (*AttendanceStatus, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: uuid is required", ErrValidation)
	}
	refDay, err := NormalizeDay(refDay)
	if err != nil {
		return nil, err
	}

	// read the generation before the ledger so a check-in landing in between
	// leaves this result under a key nobody reads again
	cacheKey := statusCacheKey(userID, s.cache.Generation(ctx, userID), refDay)
	var cached AttendanceStatus
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	first := shiftDay(refDay, -6)
	var window []models.AttendanceRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND attendance_date >= ? AND attendance_date <= ?", userID, first, refDay).
		Find(&window).Error; err != nil {
		return nil, fmt.Errorf("load attendance window: %w", err)
	}
	byDay := make(map[string]models.AttendanceRecord, len(window))
	for _, r := range window {
		byDay[r.AttendanceDate] = r
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.AttendanceRecord{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}

	status := &AttendanceStatus{TotalDays: int(total), WeeklyStatus: make([]DayStatus, 0, 7)}
	for i := 0; i < 7; i++ {
		d := shiftDay(first, i)
		entry := DayStatus{Date: d}
		if r, ok := byDay[d]; ok {
			rewards := r.Rewards.Data()
			entry.Attended = true
			entry.Rewards = &rewards
		}
		status.WeeklyStatus = append(status.WeeklyStatus, entry)
	}

	// the streak is live if it reaches today or yesterday
	if today, ok := byDay[refDay]; ok {
		status.TodayAttended = true
		status.ConsecutiveDays = today.ConsecutiveDays
	} else if yesterday, ok := byDay[shiftDay(refDay, -1)]; ok {
		status.ConsecutiveDays = yesterday.ConsecutiveDays
	}
	status.CanAttendToday = !status.TodayAttended

	s.cache.Set(ctx, cacheKey, status)
	return status, nil
}
