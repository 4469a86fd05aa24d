// Package filter decides which messages must not be relayed.
package filter

import (
	"strings"
	"unicode/utf8"
)

// Filter suppresses command-prefixed messages and messages containing
// banned words. It is immutable after construction and safe for
// concurrent use.
type Filter struct {
	prefixes map[rune]struct{}
	banned   map[string]struct{}
}

// New builds a Filter from the configured filter characters and banned words.
func New(filterChars string, bannedWords []string) *Filter {
	f := &Filter{
		prefixes: make(map[rune]struct{}, utf8.RuneCountInString(filterChars)),
		banned:   make(map[string]struct{}, len(bannedWords)),
	}
	for _, r := range filterChars {
		f.prefixes[r] = struct{}{}
	}
	for _, word := range bannedWords {
		if word == "" {
			continue
		}
		f.banned[word] = struct{}{}
	}

	return f
}

// ShouldSuppress reports whether text must not be relayed. The author is
// accepted so that per-user rules can be added without changing callers.
func (f *Filter) ShouldSuppress(text, _ string) bool {
	return f.hasFilteredPrefix(text) || f.containsBannedWord(text)
}

func (f *Filter) hasFilteredPrefix(text string) bool {
	if text == "" || len(f.prefixes) == 0 {
		return false
	}

	first, _ := utf8.DecodeRuneInString(text)
	_, ok := f.prefixes[first]
	return ok
}

// containsBannedWord matches whole whitespace-delimited tokens, case-sensitively.
func (f *Filter) containsBannedWord(text string) bool {
	if len(f.banned) == 0 {
		return false
	}

	for _, token := range strings.Fields(text) {
		if _, ok := f.banned[token]; ok {
			return true
		}
	}

	return false
}
