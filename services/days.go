package services

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// NormalizeDay accepts YYYYMMDD or YYYY-MM-DD and returns YYYY-MM-DD.
func NormalizeDay(s string) (string, error) {
	var layout string
	switch len(s) {
	case 8:
		layout = "20060102"
	case 10:
		layout = dayLayout
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	return t.Format(dayLayout), nil
}

// dayOf formats t as a calendar day in loc.
func dayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// shiftDay moves a normalized day by n calendar days.
func shiftDay(day string, n int) string {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, n).Format(dayLayout)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
