// Package blacklist runs the on-demand three-phase search over the
// registered blacklist chats/topics: by username substring, by resolved
// numeric user id, and by free-form name tokens.
package blacklist

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	idPattern    = regexp.MustCompile(`(?i)ID[:\s]*(\d+)`)
	usernamePat  = regexp.MustCompile(`(?i)Ник[:\s]*(@[\w]+)`)
	fullNamePat  = regexp.MustCompile(`(?i)ФИО[:\s]*([А-ЯЁа-яё\s]+?)(?:\n|$)`)
	phonePattern = regexp.MustCompile(`(?i)Тел[:\s]*([+\d\s*\-]+)`)
)

// ExtractedInfo is the best-effort structured data pulled from a matched
// blacklist message's free text.
type ExtractedInfo struct {
	UserID   *int64
	Username string
	FullName string
	Phone    string
	Role     string // "employer" or "worker", empty if indeterminate
}

func extractInfo(text string) ExtractedInfo {
	var info ExtractedInfo

	if m := idPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			info.UserID = &v
		}
	}
	if m := usernamePat.FindStringSubmatch(text); m != nil {
		info.Username = m[1]
	}
	if m := fullNamePat.FindStringSubmatch(text); m != nil {
		info.FullName = strings.TrimSpace(m[1])
	}
	if m := phonePattern.FindStringSubmatch(text); m != nil {
		info.Phone = strings.TrimSpace(m[1])
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "работодатель"):
		info.Role = "employer"
	case strings.Contains(lower, "сотрудник"), strings.Contains(lower, "работник"):
		info.Role = "worker"
	}

	return info
}

// matchesIDRegex reports whether the message text contains an "ID: N" tag
// equal to targetID.
func matchesIDRegex(text string, targetID int64) bool {
	m := idPattern.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	found, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return false
	}
	return found == targetID
}

// matchesFIOTokens reports whether every whitespace-delimited token of
// fio (length >= 2) appears case-insensitively in text.
func matchesFIOTokens(text, fio string) bool {
	lowerText := strings.ToLower(text)
	tokens := strings.Fields(fio)
	matched := 0
	for _, tok := range tokens {
		if len([]rune(tok)) < 2 {
			continue
		}
		if !strings.Contains(lowerText, strings.ToLower(tok)) {
			return false
		}
		matched++
	}
	return matched > 0
}
