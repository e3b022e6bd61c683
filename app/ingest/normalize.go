package ingest

import (
	"regexp"
	"strings"
	"time"
)

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	punctChars = regexp.MustCompile(`[.,#]`)

	abbreviations = []struct {
		re  *regexp.Regexp
		sub string
	}{
		{regexp.MustCompile(`\bav\b`), "ave"},
		{regexp.MustCompile(`\bavenue\b`), "ave"},
		{regexp.MustCompile(`\bstreet\b`), "st"},
		{regexp.MustCompile(`\bboulevard\b`), "blvd"},
		{regexp.MustCompile(`\bdrive\b`), "dr"},
		{regexp.MustCompile(`\blane\b`), "ln"},
		{regexp.MustCompile(`\bcourt\b`), "ct"},
		{regexp.MustCompile(`\broad\b`), "rd"},
		{regexp.MustCompile(`\bplace\b`), "pl"},
		{regexp.MustCompile(`\bterrace\b`), "ter"},
	}
)

// NormalizeAddress lowercases, collapses whitespace, shortens street
// suffixes and drops . , # so that city records match owner input.
func NormalizeAddress(addr string) string {
	s := strings.TrimSpace(spaceRun.ReplaceAllString(strings.ToLower(addr), " "))
	if s == "" {
		return ""
	}
	for _, a := range abbreviations {
		s = a.re.ReplaceAllString(s, a.sub)
	}
	return strings.TrimSpace(punctChars.ReplaceAllString(s, ""))
}

// ViolationType is the first 80 characters of a case description.
func ViolationType(desc, fallback string) string {
	clean := strings.TrimSpace(spaceRun.ReplaceAllString(desc, " "))
	if clean == "" {
		return fallback
	}
	return truncate(clean, 80)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
}

// parseDate returns the calendar date of s or nil when s is not a date.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// RiskScore for a property that just received its first violation.
func RiskScore(prior string) int {
	score := 50
	if prior == "pending" {
		score += 20
	}
	return min(100, score)
}
