// Package redact scrubs provider credentials and bearer tokens out of text
// before it reaches a log line or an API response.
package redact

import (
	"errors"
	"regexp"
)

// Placeholder replaces every scrubbed credential.
const Placeholder = "[REDACTED]"

var patterns = []*regexp.Regexp{
	// HuggingFace and Replicate tokens, plus our own agent API keys.
	regexp.MustCompile(`\b(hf_|r8_|mf_)[A-Za-z0-9_\-]+`),
	// Authorization header values echoed back by upstreams.
	regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.=:+/]+`),
	// key=value style query/body fragments.
	regexp.MustCompile(`(?i)\b(api[_-]?key|token|secret)=[^\s&"']+`),
}

// Scrub returns s with all credential-looking substrings replaced.
func Scrub(s string) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	return s
}

// Error wraps err so that its message is scrubbed. errors.Is still reports
// the sentinels of the original chain, but the raw error is not reachable
// through errors.Unwrap.
func Error(err error) error {
	if err == nil {
		return nil
	}
	return &scrubbed{msg: Scrub(err.Error()), cause: err}
}

type scrubbed struct {
	msg   string
	cause error
}

func (e *scrubbed) Error() string { return e.msg }

func (e *scrubbed) Is(target error) bool { return errors.Is(e.cause, target) }
