package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name      string
		text      string
		maxSize   int
		truncated bool
	}{
		{"within limit", "kurzer Text", 100, false},
		{"no limit", strings.Repeat("a", 500), 0, false},
		{"over limit", strings.Repeat("a", 500), 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tp.TruncateText(tt.text, tt.maxSize)
			if tt.truncated {
				assert.Contains(t, out, "Content truncated")
				assert.True(t, strings.HasPrefix(out, tt.text[:tt.maxSize]))
			} else {
				assert.Equal(t, tt.text, out)
			}
		})
	}
}

func TestTruncateTextKeepsValidUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	// "ää..." truncated mid-rune must not yield invalid UTF-8.
	text := strings.Repeat("ä", 50)
	out := tp.TruncateText(text, 5)

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasPrefix(out, "ää"))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "gültig", tp.SanitizeUTF8("gültig"))

	invalid := "abc\xff\xfedef"
	out := tp.SanitizeUTF8(invalid)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "abcdef", out)
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	out := tp.ProcessText(strings.Repeat("x", 50)+"\xff", 20)

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, "Content truncated")
}
