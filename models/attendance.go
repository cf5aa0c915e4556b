package models

import (
	"time"

	"gorm.io/datatypes"
)

// RewardItem is one item granted by an attendance reward.
type RewardItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// Rewards is the payout for a single check-in.
type Rewards struct {
	Exp   int          `json:"exp"`
	Coins int          `json:"coins"`
	Items []RewardItem `json:"items"`
}

// AttendanceRecord is one check-in for one user on one calendar day.
type AttendanceRecord struct {
	ID              uint                        `gorm:"primaryKey" json:"-"`
	UserID          string                      `gorm:"size:32;not null;index:idx_attendance_user_day,unique" json:"userId"`
	AttendanceDate  string                      `gorm:"size:10;not null;index:idx_attendance_user_day,unique" json:"attendanceDate"`
	ConsecutiveDays int                         `gorm:"not null" json:"consecutiveDays"`
	TotalDays       int                         `gorm:"not null" json:"totalDays"`
	Rewards         datatypes.JSONType[Rewards] `json:"rewards"`
	AttendedAt      time.Time                   `gorm:"not null" json:"attendedAt"`
	CreatedAt       time.Time                   `json:"-"`
}
