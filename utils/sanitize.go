package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainText = bluemonday.StrictPolicy()

// SanitizeName strips markup from a display name and trims it.
func SanitizeName(input string) string {
	return strings.TrimSpace(plainText.Sanitize(strings.TrimSpace(input)))
}
