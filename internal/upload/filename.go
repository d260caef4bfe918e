package upload

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var timeNowFunc = time.Now

var fieldHintPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Generate builds a stored filename of the form
// {fieldHint}-{unixMillis}-{randomSuffix}{ext}. The field hint survives in
// the name so the category can be recovered from the filename alone.
func Generate(fieldHint, ext string) (string, error) {
	hint := fieldHintPattern.ReplaceAllString(fieldHint, "")
	if hint == "" {
		hint = "file"
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate filename suffix: %w", err)
	}

	return fmt.Sprintf("%s-%d-%s%s", hint, timeNowFunc().UnixMilli(), hex.EncodeToString(suffix), strings.ToLower(ext)), nil
}
