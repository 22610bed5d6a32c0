package safety

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordScreener(t *testing.T) {
	s := NewKeywordScreener(DefaultCategories)

	tests := []struct {
		name   string
		text   string
		safe   bool
		reason string
	}{
		{"plain concept", "a cat debugging production at 3am", true, ""},
		{"blocked word", "a NSFW cat", false, "sexual content is not allowed"},
		{"multi word with extra spaces", "please   kill\tyourself", false, "self-harm content is not allowed"},
		{"word boundary", "a gorecki symphony", true, ""},
		{"hidden in markup", "<b>gore</b> fest", false, "graphic violence is not allowed"},
		{"empty", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := s.Check(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.safe, v.Safe)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a cat  debugging\n\nproduction", "a cat debugging production"},
		{"<script>alert(1)</script>doge", "doge"},
		{"tom &amp; jerry", "tom & jerry"},
		{"bell\x07 char", "bell char"},
		{"  trimmed  ", "trimmed"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
