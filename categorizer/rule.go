// Package categorizer maps transaction descriptions to categories through an
// ordered set of keyword rules. Evaluation is deterministic: active rules are
// tried by descending priority and the first match wins.
package categorizer

import (
	"fmt"
	"strings"
	"time"
)

// MatchType how a rule keyword is compared against a description.
type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts_with"
	MatchExact      MatchType = "exact"
)

// ParseMatchType validates s. An empty value means contains.
func ParseMatchType(s string) (MatchType, error) {
	switch MatchType(strings.TrimSpace(strings.ToLower(s))) {
	case "", MatchContains:
		return MatchContains, nil
	case MatchStartsWith:
		return MatchStartsWith, nil
	case MatchExact:
		return MatchExact, nil
	}
	return "", fmt.Errorf("tipo de correspondência inválido: %q", s)
}

// Rule a keyword → category mapping.
type Rule struct {
	ID         string
	Keyword    string
	MatchType  MatchType
	CategoryID string
	Priority   int
	IsActive   bool
	CreatedAt  time.Time
}

// Matches compares the keyword against description ignoring case.
func (r Rule) Matches(description string) bool {
	return matchLowered(r.MatchType, strings.ToLower(strings.TrimSpace(r.Keyword)), strings.ToLower(strings.TrimSpace(description)))
}

func matchLowered(mt MatchType, keyword, description string) bool {
	if keyword == "" {
		return false
	}
	switch mt {
	case MatchContains:
		return strings.Contains(description, keyword)
	case MatchStartsWith:
		return strings.HasPrefix(description, keyword)
	case MatchExact:
		return description == keyword
	}
	return false
}
