package models

// Sequence is a named monotonic counter.
type Sequence struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value int64  `gorm:"not null;default:0"`
}

// UserUUIDSequence names the counter that issues public user ids.
const UserUUIDSequence = "user_uuid"
