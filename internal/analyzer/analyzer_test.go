package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/store"
	"github.com/AureliusCaelum/mail-analyzer/internal/cluster"
	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/contextaware"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/ml"
	"github.com/AureliusCaelum/mail-analyzer/internal/rules"
	"github.com/AureliusCaelum/mail-analyzer/internal/trend"
)

func newTestAnalyzer() *ThreatAnalyzer {
	return newAnalyzerWithIntel(nil, false)
}

func newAnalyzerWithIntel(svc core.ThreatIntel, enableIntel bool) *ThreatAnalyzer {
	v := config.NewEmptyViper()
	if enableIntel {
		v.Set("analysis.enable_intel", true)
	}
	cfg := config.NewFromViper(v)
	st := store.NewMemoryStore()
	logger := zap.NewNop()

	return NewThreatAnalyzer(
		cfg.GetAnalysis(),
		rules.NewScorer(cfg.GetRules(), logger),
		ml.NewAnalyzer(cfg.GetML(), st, logger),
		ml.NewFeedbackLearner(cfg.GetFeedback(), st, logger),
		contextaware.NewAnalyzer(st, logger),
		cluster.NewAnalyzer(cfg.GetCluster(), st, logger),
		trend.NewEngine(logger),
		svc,
		logger,
	)
}

func phishingMessage() core.Message {
	return core.Message{
		Sender:      "bank-support@suspicious.com",
		Subject:     "DRINGEND: Ihr Konto wurde gesperrt",
		Body:        "Bitte klicken Sie sofort hier: http://alert.xyz/login und geben Sie Ihr Passwort ein.",
		Attachments: []string{"rechnung.exe"},
	}
}

func TestAnalyzeEmptyMessage(t *testing.T) {
	a := newTestAnalyzer()

	msg := core.Message{}
	verdict := a.AnalyzeMessage(&msg, nil)

	// Only the rule signal contributes: 0.5*0.4 over a total weight of 0.6.
	assert.InDelta(t, 3.33, verdict.Score, 0.01)
	assert.Equal(t, core.LevelLow, verdict.Level)
	assert.Nil(t, verdict.Context)
	assert.Zero(t, verdict.MLConfidence)
	require.NotNil(t, verdict.Cluster)
	assert.Empty(t, verdict.Cluster.NewPatterns)
	assert.NotNil(t, verdict.Trend)
	assert.False(t, verdict.AnalyzedAt.IsZero())
}

func TestAnalyzePhishingMessage(t *testing.T) {
	a := newTestAnalyzer()

	msg := phishingMessage()
	verdict := a.AnalyzeMessage(&msg, nil)

	assert.Equal(t, core.LevelHigh, verdict.Level)
	assert.GreaterOrEqual(t, verdict.Score, 7.0)
	assert.LessOrEqual(t, verdict.Score, 10.0)
	assert.Contains(t, verdict.Indicators, "High-risk attachment: rechnung.exe")
	assert.Equal(t, []string{"http://alert.xyz/login"}, verdict.AnalyzedURLs)
}

func TestAnalyzeWithUserContext(t *testing.T) {
	a := newTestAnalyzer()

	msg := phishingMessage()
	msg.Subject = "Offene Rechnung Ihrer Bank"
	verdict := a.AnalyzeMessage(&msg, &core.UserContext{
		Role:           "finance",
		Department:     "buchhaltung",
		ClearanceLevel: 2,
	})

	require.NotNil(t, verdict.Context)
	assert.NotEmpty(t, verdict.Context.SuggestedActions)
	assert.Contains(t, verdict.Context.RoleThreats, "Fake invoice")
	assert.Contains(t, verdict.Context.RoleThreats, "Possible banking trojan")

	// Role-specific threats surface in the verdict's indicator list, not
	// only in the nested context analysis.
	assert.Contains(t, verdict.Indicators, "Fake invoice")
	assert.Contains(t, verdict.Indicators, "Possible banking trojan")
}

func TestContextScoreFeedsFusionDirectly(t *testing.T) {
	a := newTestAnalyzer()

	msg := core.Message{Sender: "partner@firma.example"}
	verdict := a.AnalyzeMessage(&msg, &core.UserContext{
		Role:           "employee",
		CommonContacts: []string{"partner@firma.example"},
	})

	require.NotNil(t, verdict.Context)
	assert.InDelta(t, 0.24, verdict.Context.Score, 1e-9)
	// All other signals are zero, so the verdict carries exactly the
	// weighted context score: 0.2*0.24/0.8*10.
	assert.InDelta(t, 0.6, verdict.Score, 1e-9)
}

func TestTrendRecordsRuleAverage(t *testing.T) {
	a := newTestAnalyzer()

	msg := core.Message{}
	verdict := a.AnalyzeMessage(&msg, nil)

	// The trend history keeps the rule-based average (0.5 for an empty
	// message), not the fused score of 3.33.
	require.NotNil(t, verdict.Trend)
	assert.InDelta(t, 0.5, verdict.Trend.Windows["short"].AvgSeverity, 1e-9)
}

func TestTrendAdviceJoinsIndicators(t *testing.T) {
	a := newTestAnalyzer()

	msg := phishingMessage()
	verdict := a.AnalyzeMessage(&msg, nil)

	require.NotNil(t, verdict.Trend)
	require.NotEmpty(t, verdict.Trend.Recommendations)
	for _, rec := range verdict.Trend.Recommendations {
		assert.Contains(t, verdict.Indicators, rec)
	}
}

func TestScoreStaysWithinBounds(t *testing.T) {
	a := newTestAnalyzer()

	messages := []core.Message{
		{},
		phishingMessage(),
		{Sender: "a@b.example", Subject: "Hallo", Body: "Bis morgen!"},
	}
	for i := range messages {
		verdict := a.AnalyzeMessage(&messages[i], nil)
		assert.GreaterOrEqual(t, verdict.Score, 0.0)
		assert.LessOrEqual(t, verdict.Score, 10.0)
	}
}

func TestAnalyzeBatchDetectsCampaign(t *testing.T) {
	a := newTestAnalyzer()

	msgs := make([]core.Message, 4)
	verdicts := a.AnalyzeBatch(msgs, nil)
	require.Len(t, verdicts, 4)

	// Four identical messages form a cluster, and the new pattern raises
	// every verdict above the single-message baseline.
	for _, verdict := range verdicts {
		require.NotNil(t, verdict.Cluster)
		assert.NotEmpty(t, verdict.Cluster.NewPatterns)
		assert.Contains(t, verdict.Indicators, "New threat pattern detected")
		assert.InDelta(t, 6.67, verdict.Score, 0.01)
		assert.Equal(t, core.LevelMedium, verdict.Level)
		require.NotNil(t, verdict.Trend)
		for _, rec := range verdict.Trend.Recommendations {
			assert.Contains(t, verdict.Indicators, rec)
		}
	}
}

// flaggedURLIntel reports every URL as hit by both reputation sources and
// everything else as clean.
type flaggedURLIntel struct{}

func (flaggedURLIntel) CheckURLs(_ context.Context, urls []string) map[string]core.URLCheckResult {
	out := make(map[string]core.URLCheckResult, len(urls))
	for _, u := range urls {
		out[u] = core.URLCheckResult{
			SafeBrowsing: core.StatusSuspicious,
			PhishTank:    core.StatusBlacklisted,
		}
	}
	return out
}

func (flaggedURLIntel) CheckSenderReputation(context.Context, string) core.ReputationResult {
	return core.ReputationResult{Spamhaus: core.StatusClean, SURBL: core.StatusClean}
}

func (flaggedURLIntel) SpamScore(string) float64 { return 0 }

func (flaggedURLIntel) AnalyzeAttachment(context.Context, string) core.AttachmentScanResult {
	return core.AttachmentScanResult{}
}

func (flaggedURLIntel) AnalyzeTextLocal(context.Context, string) core.AdvisorResult {
	return core.AdvisorResult{}
}

func TestIntelURLBonusesStack(t *testing.T) {
	a := newAnalyzerWithIntel(flaggedURLIntel{}, true)

	msg := core.Message{
		Sender:  "info@firma.example",
		Subject: "Unterlagen",
		Body:    "Details unter http://portal.example/akte",
	}
	verdict := a.IntelAnalysis(context.Background(), &msg, nil)

	// Both URL sources hit, so both bonuses apply on top of a zero fused
	// score: 2.5 + 2.0.
	assert.InDelta(t, 4.5, verdict.Score, 1e-9)
	assert.Contains(t, verdict.Indicators, "Reputation services flagged URL: http://portal.example/akte")
	assert.Contains(t, verdict.Indicators, "URL appears in phishing database: http://portal.example/akte")
}

func TestIntelAnalysisWithoutService(t *testing.T) {
	a := newTestAnalyzer()

	msg := core.Message{Sender: "a@b.example", Subject: "Hallo"}
	verdict := a.IntelAnalysis(context.Background(), &msg, nil)

	require.NotNil(t, verdict)
	assert.Equal(t, core.LevelLow, verdict.Level)
}

func TestDetermineThreatType(t *testing.T) {
	tests := []struct {
		name     string
		msg      core.Message
		expected core.ThreatType
	}{
		{
			"executable wins over body terms",
			core.Message{Body: "Ihre Bank braucht Sie", Attachments: []string{"setup.exe"}},
			core.ThreatMalware,
		},
		{
			"phishing body",
			core.Message{Body: "Bitte Konto bestätigen"},
			core.ThreatPhishing,
		},
		{
			"scam subject",
			core.Message{Subject: "Ihr Gewinn wartet"},
			core.ThreatScam,
		},
		{
			"fallback",
			core.Message{Subject: "Hallo", Body: "Bis morgen"},
			core.ThreatSuspicious,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, determineThreatType(&tt.msg))
		})
	}
}

func TestAddFeedbackAdjustsLaterVerdicts(t *testing.T) {
	a := newTestAnalyzer()

	msg := core.Message{Sender: "it@firma.example", Subject: "Wartungsfenster"}
	verdict := a.AnalyzeMessage(&msg, nil)

	a.AddFeedback(&msg, verdict, core.UserFeedback{
		IsCorrect:       true,
		CorrectCategory: "legitimate",
	})

	// A single feedback sample is below the learner's training minimum, so
	// the verdict is unchanged but the feedback is retained.
	again := a.AnalyzeMessage(&msg, nil)
	assert.InDelta(t, verdict.Score, again.Score, 0.01)
}
