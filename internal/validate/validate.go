package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationError describes why a submission was rejected. The message
// names the violated bound so the caller can act on it.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validator decides whether submitted text is admissible.
type Validator interface {
	Validate(text string) error
}

// RuleValidator enforces length bounds and a denylist of patterns.
// The denylist is injected so content policy can be data-driven
// without touching the matching engine.
type RuleValidator struct {
	minLen   int
	maxLen   int
	denylist []*regexp.Regexp
}

// NewRuleValidator compiles the given deny patterns. Invalid patterns
// are returned as an error rather than silently dropped.
func NewRuleValidator(minLen, maxLen int, denyPatterns []string) (*RuleValidator, error) {
	v := &RuleValidator{minLen: minLen, maxLen: maxLen}
	for _, p := range denyPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile deny pattern %q: %w", p, err)
		}
		v.denylist = append(v.denylist, re)
	}
	return v, nil
}

// Validate returns nil when text is admissible, or a *ValidationError
// naming the violated bound.
func (v *RuleValidator) Validate(text string) error {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	if n < v.minLen {
		return &ValidationError{Reason: fmt.Sprintf("text too short: minimum %d characters", v.minLen)}
	}
	if n > v.maxLen {
		return &ValidationError{Reason: fmt.Sprintf("text too long: maximum %d characters", v.maxLen)}
	}
	for _, re := range v.denylist {
		if re.MatchString(trimmed) {
			return &ValidationError{Reason: "text contains disallowed content"}
		}
	}
	return nil
}
