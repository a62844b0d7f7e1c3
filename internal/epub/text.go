package epub

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once

	tagPattern = regexp.MustCompile(`<[^>]*>`)
)

// getPolicy returns a policy that drops every tag, leaving a space where a
// tag was so adjacent blocks do not merge.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
		policy.AddSpaceWhenStrippingTag(true)
	})
	return policy
}

// SectionText converts one XHTML document to plain text.
func SectionText(doc string) string {
	if doc == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(getPolicy().Sanitize(doc)))
}

// ExtractText joins the plain text of every non-empty section with newlines.
func ExtractText(sections []Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if text := SectionText(s.HTML); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// CountWords counts whitespace-separated tokens holding at least one ASCII
// letter, digit or CJK ideograph. Tags are replaced with spaces first.
func CountWords(text string) int {
	if text == "" {
		return 0
	}
	count := 0
	for _, word := range strings.Fields(tagPattern.ReplaceAllString(text, " ")) {
		if isWord(word) {
			count++
		}
	}
	return count
}

func isWord(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return true
		case r >= 0x4e00 && r <= 0x9fff:
			return true
		}
	}
	return false
}
