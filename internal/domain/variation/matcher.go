package variation

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternMatcher scans free text for a theme's vocabulary.
type PatternMatcher interface {
	// Find returns the first vocabulary hit in text. Patterns are tried in
	// order before common values.
	Find(text string) (string, bool)
	// Strip removes every pattern match and every common value from text.
	Strip(text string) string
}

// RegexMatcher is the default PatternMatcher backed by regular expressions.
type RegexMatcher struct {
	patterns []*regexp.Regexp
	values   []valueMatcher
}

type valueMatcher struct {
	value string
	re    *regexp.Regexp
}

// Word boundaries are expressed with letter/number classes because \b is
// ASCII-only in RE2 and the vocabulary contains accented values.
const (
	boundaryBefore = `(^|[^\p{L}\p{N}])`
	boundaryAfter  = `([^\p{L}\p{N}]|$)`
)

// NewRegexMatcher compiles patterns (case-insensitive) and common values
// (case-insensitive, word-bounded).
func NewRegexMatcher(patterns, commonValues []string) (*RegexMatcher, error) {
	m := &RegexMatcher{
		patterns: make([]*regexp.Regexp, 0, len(patterns)),
		values:   make([]valueMatcher, 0, len(commonValues)),
	}

	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}

	for _, v := range commonValues {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + boundaryBefore + "(" + regexp.QuoteMeta(v) + ")" + boundaryAfter)
		if err != nil {
			return nil, fmt.Errorf("compile value %q: %w", v, err)
		}
		m.values = append(m.values, valueMatcher{value: v, re: re})
	}

	return m, nil
}

// Find implements PatternMatcher
func (m *RegexMatcher) Find(text string) (string, bool) {
	for _, re := range m.patterns {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := match[0]
		if len(match) > 1 && match[1] != "" {
			value = match[1]
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, true
		}
	}
	for _, vm := range m.values {
		if vm.re.MatchString(text) {
			return vm.value, true
		}
	}
	return "", false
}

// Strip implements PatternMatcher
func (m *RegexMatcher) Strip(text string) string {
	for _, re := range m.patterns {
		text = re.ReplaceAllString(text, " ")
	}
	for _, vm := range m.values {
		text = vm.re.ReplaceAllString(text, "${1} ${3}")
	}
	return text
}

var _ PatternMatcher = (*RegexMatcher)(nil)
