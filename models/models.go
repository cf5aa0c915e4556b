package models

// All lists every table the service migrates.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Sequence{},
		&AttendanceRecord{},
		&QuestProgress{},
		&StageProgress{},
		&GameState{},
		&PlatformEvent{},
	}
}
