package ml

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/store"
	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

func testFeedbackConfig() config.FeedbackConfig {
	return config.FeedbackConfig{
		MinSamples:              2,
		RetrainEvery:            1,
		OriginalWeight:          0.7,
		FeedbackWeight:          0.3,
		FeedbackScale:           10,
		ConfidenceThreshold:     0.8,
		HighConfidenceThreshold: 0.9,
	}
}

func addFeedbackSamples(l *FeedbackLearner, n int) {
	for i := 0; i < n; i++ {
		msg := core.Message{
			Subject: fmt.Sprintf("Wartungsfenster %d", i),
			Sender:  "it@firma.example",
		}
		verdict := core.Verdict{Score: 8, Level: core.LevelHigh}
		l.AddFeedback(&msg, &verdict, core.UserFeedback{
			IsCorrect:       true,
			CorrectCategory: "legitimate",
		})
	}
}

func TestAdjustAnalysisBeforeTraining(t *testing.T) {
	l := NewFeedbackLearner(testFeedbackConfig(), store.NewMemoryStore(), zap.NewNop())

	verdict := &core.Verdict{Score: 8, Level: core.LevelHigh}
	adjusted := l.AdjustAnalysis(&core.Message{Subject: "x"}, verdict)

	assert.Equal(t, 8.0, adjusted.Score)
	assert.Empty(t, adjusted.Indicators)
}

func TestAdjustAnalysisBlendsLearnedJudgement(t *testing.T) {
	l := NewFeedbackLearner(testFeedbackConfig(), store.NewMemoryStore(), zap.NewNop())
	addFeedbackSamples(l, 4)
	l.WaitForRetrain()

	msg := core.Message{Subject: "Wartungsfenster 99", Sender: "it@firma.example"}
	verdict := &core.Verdict{Score: 5, Level: core.LevelMedium}
	adjusted := l.AdjustAnalysis(&msg, verdict)

	// A single all-correct label yields full confidence, so the blend is
	// 5*0.7 + 1.0*10*0.3.
	assert.InDelta(t, 6.5, adjusted.Score, 1e-9)
	assert.Equal(t, core.LevelMedium, adjusted.Level)
	assert.Contains(t, adjusted.Indicators, "Adjusted based on company feedback")

	// Re-adjusting must not duplicate the indicator.
	adjusted = l.AdjustAnalysis(&msg, adjusted)
	count := 0
	for _, ind := range adjusted.Indicators {
		if ind == "Adjusted based on company feedback" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestFeatureStringsAlign(t *testing.T) {
	msg := core.Message{
		Subject:     "Offene Rechnung",
		Sender:      "erp@firma.example",
		Attachments: []string{"rechnung.pdf", "anhang.zip"},
	}
	entry := core.FeedbackEntry{
		Subject:        msg.Subject,
		Sender:         msg.Sender,
		HasAttachments: true,
	}

	// Prediction and training must tokenize into the same vocabulary.
	assert.Equal(t, entryFeatures(&entry), feedbackFeatures(&msg))
}

func TestStats(t *testing.T) {
	l := NewFeedbackLearner(testFeedbackConfig(), store.NewMemoryStore(), zap.NewNop())

	_, err := l.Stats()
	assert.Error(t, err)

	addFeedbackSamples(l, 3)
	l.WaitForRetrain()

	stats, err := l.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSamples)
	assert.Equal(t, 1.0, stats.Accuracy)
	assert.Equal(t, 3, stats.CategoryDistribution["legitimate"])
	assert.NotEmpty(t, stats.LastRetrain)
}

func TestFeedbackPersistsAcrossRestarts(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := testFeedbackConfig()

	l := NewFeedbackLearner(cfg, st, zap.NewNop())
	addFeedbackSamples(l, 3)
	l.WaitForRetrain()

	restored := NewFeedbackLearner(cfg, st, zap.NewNop())
	stats, err := restored.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSamples)
}
