package capture

import (
	"slices"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestLaunchArgs(t *testing.T) {
	got := launchArgs("Profile 39", false, []string{" --lang=ko-KR ", ""})
	want := []string{
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-dev-shm-usage",
		"--no-first-run",
		"--no-default-browser-check",
		"--start-maximized",
		"--profile-directory=Profile 39",
		"--lang=ko-KR",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("launchArgs() = %q, want %q", got, want)
	}

	stealthy := launchArgs("Default", true, nil)
	if !slices.Contains(stealthy, "--disable-blink-features=AutomationControlled") {
		t.Fatalf("stealth args missing: %q", stealthy)
	}
}

func TestSplitFlag(t *testing.T) {
	tests := []struct {
		in       string
		name     string
		value    string
		hasValue bool
	}{
		{"--no-sandbox", "no-sandbox", "", false},
		{"--profile-directory=Profile 39", "profile-directory", "Profile 39", true},
		{"--disable-blink-features=AutomationControlled", "disable-blink-features", "AutomationControlled", true},
		{"--js-flags=--max-old-space-size=4096", "js-flags", "--max-old-space-size=4096", true},
	}
	for _, tt := range tests {
		name, value, hasValue := splitFlag(tt.in)
		if name != tt.name || value != tt.value || hasValue != tt.hasValue {
			t.Fatalf("splitFlag(%q) = %q, %q, %v", tt.in, name, value, hasValue)
		}
	}
}

func TestNewDriver(t *testing.T) {
	for engine, want := range map[string]string{
		"":           "*capture.PlaywrightDriver",
		"playwright": "*capture.PlaywrightDriver",
		"chromedp":   "*capture.ChromedpDriver",
		"rod":        "*capture.RodDriver",
	} {
		d, err := NewDriver(engine)
		if err != nil {
			t.Fatalf("NewDriver(%q) error = %v", engine, err)
		}
		if got := typeName(d); got != want {
			t.Fatalf("NewDriver(%q) = %s, want %s", engine, got, want)
		}
	}
	if _, err := NewDriver("selenium"); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func typeName(d Driver) string {
	switch d.(type) {
	case *PlaywrightDriver:
		return "*capture.PlaywrightDriver"
	case *ChromedpDriver:
		return "*capture.ChromedpDriver"
	case *RodDriver:
		return "*capture.RodDriver"
	}
	return "unknown"
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"Profile 39":     "Profile_39",
		"Default":        "Default",
		"Work/Personal":  "Work_Personal",
		`a:b*c?"d<e>|f`:  "a_b_c__d_e__f",
		"  spaced  out ": "__spaced__out_",
		"Profile\t2":      "Profile_2",
		"":               "profile",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := SanitizeName(strings.Repeat("x", 150)); len(got) != 100 {
		t.Fatalf("expected truncation to 100 chars, got %d", len(got))
	}
	got := SanitizeName(strings.Repeat("프로필", 50))
	if !utf8.ValidString(got) {
		t.Fatalf("truncated name is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Fatalf("expected truncation to 100 runes, got %d", n)
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := FileName("Profile 39", at); got != "screenshot_Profile_39_20260102_030405.png" {
		t.Fatalf("FileName() = %q", got)
	}
}
