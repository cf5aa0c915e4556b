package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a player identity. UUID is the public id handed to the platform: a
// numeric string assigned in login order.
type User struct {
	ID               uint       `gorm:"primaryKey" json:"-"`
	UUID             string     `gorm:"size:32;uniqueIndex;not null" json:"uuid"`
	Username         string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	LastLoginAt      time.Time  `json:"lastLoginAt"`
	PlatformID       *int64     `json:"platformId,omitempty"`
	MemberID         *int64     `json:"memberId,omitempty"`
	BappID           *int64     `json:"bappId,omitempty"`
	PlatformUUID     *string    `gorm:"size:64" json:"platformUuid,omitempty"`
	JoinedAt         *time.Time `json:"joinedAt,omitempty"`
	IsPlatformLinked bool       `gorm:"not null;default:false" json:"isPlatformLinked"`
	PlatformLinkedAt *time.Time `json:"platformLinkedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// PlatformLink carries the optional external-platform identity merged into a user at login.
type PlatformLink struct {
	PlatformID   *int64     `json:"platformId"`
	MemberID     *int64     `json:"memberId"`
	BappID       *int64     `json:"bappId"`
	PlatformUUID *string    `json:"uuid"`
	JoinedAt     *time.Time `json:"joinedAt"`
}

// Apply overwrites the link fields on u and marks it linked at the given time.
func (l *PlatformLink) Apply(u *User, at time.Time) {
	u.PlatformID = l.PlatformID
	u.MemberID = l.MemberID
	u.BappID = l.BappID
	u.PlatformUUID = l.PlatformUUID
	u.JoinedAt = l.JoinedAt
	u.IsPlatformLinked = true
	u.PlatformLinkedAt = &at
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.LastLoginAt.IsZero() {
		u.LastLoginAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now().UTC()
	return nil
}
