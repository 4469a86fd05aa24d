// Package issue finds issue references in chat text and resolves them
// against the GitHub REST API.
package issue

import (
	"regexp"
	"strconv"
)

// referencePattern matches "#<digits>" at the start of text or after whitespace,
// so "x#9" and URL fragments are not references.
var referencePattern = regexp.MustCompile(`(?:^|\s)#([0-9]+)`)

// Reference is an issue number mentioned in a message.
type Reference struct {
	Number int
}

// Extract returns every reference in text, left to right, duplicates included.
// Numbers too large to represent are skipped.
func Extract(text string) []Reference {
	matches := referencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	refs := make([]Reference, 0, len(matches))
	for _, match := range matches {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		refs = append(refs, Reference{Number: n})
	}

	return refs
}
