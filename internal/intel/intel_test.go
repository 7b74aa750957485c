package intel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

func newTestService() *Service {
	return NewService(config.IntelConfig{}, nil, zap.NewNop())
}

func TestSpamScore(t *testing.T) {
	s := newTestService()

	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{"clean text", "Hallo, anbei das Protokoll von gestern.", 0},
		{"single phrase", "Unser casino wartet auf Sie", 2.0},
		{"stacked phrases", "Lottery gewinn, click here!", 4.5},
		{"shouting", "SIE HABEN ETWAS SEHR WICHTIGES GEWONNEN HEUTE", 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, s.SpamScore(tt.text), 1e-9)
		})
	}
}

func TestSpamScoreCapped(t *testing.T) {
	s := newTestService()

	var b strings.Builder
	for phrase := range spamPhrases {
		b.WriteString(phrase)
		b.WriteString(" ")
	}

	assert.LessOrEqual(t, s.SpamScore(b.String()), 10.0)
}

func TestCheckURLsOfflineHeuristic(t *testing.T) {
	s := newTestService()

	urls := []string{
		"http://alert.xyz/login",
		"https://bit.ly/3abcdef",
		"https://www.example.com/news",
		"not a url",
	}
	results := s.CheckURLs(context.Background(), urls)
	require.Len(t, results, len(urls))

	assert.Equal(t, core.StatusSuspicious, results["http://alert.xyz/login"].SafeBrowsing)
	assert.Equal(t, core.StatusSuspicious, results["https://bit.ly/3abcdef"].PhishTank)
	assert.Equal(t, core.StatusClean, results["https://www.example.com/news"].SafeBrowsing)
	assert.Equal(t, core.StatusError, results["not a url"].SafeBrowsing)
}

func TestCheckURLsEmpty(t *testing.T) {
	s := newTestService()
	assert.Empty(t, s.CheckURLs(context.Background(), nil))
}

func TestAnalyzeTextLocalWithoutAdvisor(t *testing.T) {
	s := newTestService()

	result := s.AnalyzeTextLocal(context.Background(), "irgendein Text")

	assert.Zero(t, result.SpamScore)
	assert.Equal(t, "no local advisory model configured", result.Explanation)
}

func TestAnalyzeAttachmentWithoutAPIKey(t *testing.T) {
	s := newTestService()

	path := filepath.Join(t.TempDir(), "rechnung.pdf")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	result := s.AnalyzeAttachment(context.Background(), path)
	assert.Equal(t, "no attachment reputation service configured", result.Err)
}

func TestAnalyzeAttachmentMissingFile(t *testing.T) {
	s := newTestService()

	result := s.AnalyzeAttachment(context.Background(), filepath.Join(t.TempDir(), "fehlt.pdf"))
	assert.Contains(t, result.Err, "failed to hash attachment")
}
