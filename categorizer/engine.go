package categorizer

import (
	"sort"
	"strings"
)

// RuleSet an immutable, evaluation-ordered snapshot of rules. Build one per
// import or per request from the rule store; it is safe for concurrent use.
type RuleSet struct {
	rules []compiledRule
}

type compiledRule struct {
	Rule
	keyword string
}

// NewRuleSet drops inactive rules and orders the rest by priority desc,
// then creation time, then id.
func NewRuleSet(rules []Rule) RuleSet {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		compiled = append(compiled, compiledRule{
			Rule:    r,
			keyword: strings.ToLower(strings.TrimSpace(r.Keyword)),
		})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		a, b := compiled[i], compiled[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return RuleSet{rules: compiled}
}

// Len number of active rules.
func (s RuleSet) Len() int {
	return len(s.rules)
}

// Rules active rules in evaluation order.
func (s RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Rule
	}
	return out
}

// Match returns the first rule matching description.
func (s RuleSet) Match(description string) (Rule, bool) {
	desc := strings.ToLower(strings.TrimSpace(description))
	for _, r := range s.rules {
		if matchLowered(r.MatchType, r.keyword, desc) {
			return r.Rule, true
		}
	}
	return Rule{}, false
}

// Categorize returns the winning rule's category id, or nil.
func (s RuleSet) Categorize(description string) *string {
	r, ok := s.Match(description)
	if !ok {
		return nil
	}
	id := r.CategoryID
	return &id
}
