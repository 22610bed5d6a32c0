// Package safety screens free-text generation input and sanitizes the concept
// before it is embedded into an image prompt.
package safety

import (
	"context"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Verdict is the result of screening one text field.
type Verdict struct {
	Safe   bool
	Reason string
}

// Screener decides whether a text may be used for generation. A production
// classifier may be remote, hence the context and the error.
type Screener interface {
	Check(ctx context.Context, text string) (Verdict, error)
}

type rule struct {
	re     *regexp.Regexp
	reason string
}

// KeywordScreener rejects texts containing blocklisted terms.
type KeywordScreener struct {
	rules []rule
}

// Category groups blocklisted terms under one rejection reason.
type Category struct {
	Reason string
	Terms  []string
}

// DefaultCategories is the built-in blocklist.
var DefaultCategories = []Category{
	{Reason: "sexual content is not allowed", Terms: []string{"nsfw", "nude", "nudes", "naked", "porn", "explicit sex"}},
	{Reason: "graphic violence is not allowed", Terms: []string{"gore", "behead", "beheading", "dismember", "mass shooting"}},
	{Reason: "self-harm content is not allowed", Terms: []string{"kill yourself", "kys", "suicide"}},
	{Reason: "hateful content is not allowed", Terms: []string{"nazi", "swastika", "white power", "ethnic cleansing"}},
	{Reason: "content about real-person deepfakes is not allowed", Terms: []string{"deepfake"}},
}

// NewKeywordScreener compiles the categories into whole-word,
// case-insensitive matchers. Whitespace inside a term matches any run of
// whitespace in the input.
func NewKeywordScreener(categories []Category) *KeywordScreener {
	s := &KeywordScreener{}
	for _, c := range categories {
		for _, term := range c.Terms {
			words := strings.Fields(term)
			for i, w := range words {
				words[i] = regexp.QuoteMeta(w)
			}
			re := regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
			s.rules = append(s.rules, rule{re: re, reason: c.Reason})
		}
	}
	return s
}

func (s *KeywordScreener) Check(_ context.Context, text string) (Verdict, error) {
	normalized := Sanitize(text)
	for _, r := range s.rules {
		if r.re.MatchString(normalized) {
			return Verdict{Safe: false, Reason: r.reason}, nil
		}
	}
	return Verdict{Safe: true}, nil
}

var strict = bluemonday.StrictPolicy()

// Sanitize strips markup, control characters and redundant whitespace.
func Sanitize(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsControl(r), r == unicode.ReplacementChar:
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
