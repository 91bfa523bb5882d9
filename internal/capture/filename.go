package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const timestampLayout = "20060102_150405"

var illegalChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// maxNameRunes bounds the profile part of a file name.
const maxNameRunes = 100

// SanitizeName makes a profile name safe to embed in a filename. Every space
// and illegal character becomes its own underscore.
func SanitizeName(name string) string {
	sanitized := illegalChars.ReplaceAllString(name, "_")
	sanitized = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, sanitized)
	if sanitized == "" {
		return "profile"
	}
	if utf8.RuneCountInString(sanitized) > maxNameRunes {
		sanitized = string([]rune(sanitized)[:maxNameRunes])
	}
	return sanitized
}

// FileName returns screenshot_<profile>_<YYYYMMDD_HHMMSS>.png.
func FileName(profileName string, at time.Time) string {
	return fmt.Sprintf("screenshot_%s_%s.png", SanitizeName(profileName), at.Format(timestampLayout))
}

// outputPath picks the first free file name in dir, starting at `at` and
// moving forward one second at a time so an existing capture is never
// overwritten.
func outputPath(dir, profileName string, at time.Time) string {
	for {
		p := filepath.Join(dir, FileName(profileName, at))
		if _, err := os.Lstat(p); err != nil {
			return p
		}
		at = at.Add(time.Second)
	}
}
