// Package analyzer fuses the rule-based, learned, context-aware and
// cluster signals into one verdict per message. All collaborator state is
// read per call; a failing collaborator degrades to a neutral
// contribution and never fails the analysis.
package analyzer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/cluster"
	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/contextaware"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/ml"
	"github.com/AureliusCaelum/mail-analyzer/internal/rules"
	"github.com/AureliusCaelum/mail-analyzer/internal/trend"
)

const newPatternIndicator = "New threat pattern detected"

// Deep-scan score contributions, applied on top of the fused score and
// capped at 10.
const (
	intelAdvisorGate    = 0.7
	intelAdvisorBonus   = 2.0
	intelBlacklistBonus = 3.0
	intelSuspiciousURL  = 2.5
	intelPhishTankURL   = 2.0
	intelSpamGate       = 5.0
	intelSpamBonus      = 1.5
)

// Keyword tables for threat type classification, checked in order.
var (
	phishingBodyTerms = []string{"bank", "konto", "password", "anmelden"}
	scamSubjectTerms  = []string{"gewinn", "prize", "lottery"}
	malwareExtensions = []string{".exe", ".bat", ".cmd", ".scr", ".js", ".vbs", ".ps1", ".msi", ".reg"}
)

// ThreatAnalyzer orchestrates all scoring collaborators.
type ThreatAnalyzer struct {
	cfg      config.AnalysisConfig
	rules    *rules.Scorer
	ml       *ml.Analyzer
	feedback *ml.FeedbackLearner
	context  *contextaware.Analyzer
	cluster  *cluster.Analyzer
	trend    *trend.Engine
	intel    core.ThreatIntel
	logger   *zap.Logger
}

// NewThreatAnalyzer wires the orchestrator. The intel collaborator may be
// nil; deep scans then report only the fused verdict.
func NewThreatAnalyzer(
	cfg config.AnalysisConfig,
	ruleScorer *rules.Scorer,
	mlAnalyzer *ml.Analyzer,
	feedback *ml.FeedbackLearner,
	contextAnalyzer *contextaware.Analyzer,
	clusterAnalyzer *cluster.Analyzer,
	trendEngine *trend.Engine,
	intelService core.ThreatIntel,
	logger *zap.Logger,
) *ThreatAnalyzer {
	return &ThreatAnalyzer{
		cfg:      cfg,
		rules:    ruleScorer,
		ml:       mlAnalyzer,
		feedback: feedback,
		context:  contextAnalyzer,
		cluster:  clusterAnalyzer,
		trend:    trendEngine,
		intel:    intelService,
		logger:   logger,
	}
}

// AnalyzeMessage produces a verdict for one message. The user context is
// optional; without it the context signal contributes nothing and the
// verdict carries no context analysis.
func (t *ThreatAnalyzer) AnalyzeMessage(msg *core.Message, uc *core.UserContext) *core.Verdict {
	ruleResult := t.rules.Evaluate(msg)
	mlResult := t.ml.Analyze(msg)

	var contextResult *core.ContextAnalysis
	if uc != nil {
		contextResult = t.context.AnalyzeWithContext(msg, uc)
	}

	sample := cluster.Sample{
		Message:    *msg,
		Score:      ruleResult.Average(),
		Indicators: ruleResult.Indicators,
		URLs:       ruleResult.URLs,
	}
	clusterResult := t.cluster.AnalyzePatterns([]cluster.Sample{sample})

	verdict := t.fuse(ruleResult, mlResult, contextResult, clusterResult)
	verdict = t.feedback.AdjustAnalysis(msg, verdict)

	t.recordThreat(msg, verdict, ruleResult.Average(), uc)
	verdict.Trend = t.trend.AnalyzeTrends()
	t.appendRecommendations(verdict)

	t.ml.Train(msg, verdict.Score)

	t.logger.Debug("Analyzed message",
		zap.String("sender", msg.Sender),
		zap.Float64("score", verdict.Score),
		zap.String("level", verdict.Level.String()))

	return verdict
}

// AnalyzeBatch analyzes a batch and clusters it as a whole, so campaign
// patterns spanning the batch are visible to every verdict.
func (t *ThreatAnalyzer) AnalyzeBatch(msgs []core.Message, uc *core.UserContext) []*core.Verdict {
	verdicts := make([]*core.Verdict, len(msgs))
	samples := make([]cluster.Sample, len(msgs))

	for i := range msgs {
		msg := &msgs[i]
		ruleResult := t.rules.Evaluate(msg)
		mlResult := t.ml.Analyze(msg)

		var contextResult *core.ContextAnalysis
		if uc != nil {
			contextResult = t.context.AnalyzeWithContext(msg, uc)
		}

		samples[i] = cluster.Sample{
			Message:    *msg,
			Score:      ruleResult.Average(),
			Indicators: ruleResult.Indicators,
			URLs:       ruleResult.URLs,
		}
		verdicts[i] = t.fuse(ruleResult, mlResult, contextResult, nil)
	}

	clusterResult := t.cluster.AnalyzePatterns(samples)
	for i := range verdicts {
		t.applyCluster(verdicts[i], clusterResult)
		verdicts[i] = t.feedback.AdjustAnalysis(&msgs[i], verdicts[i])
		t.recordThreat(&msgs[i], verdicts[i], samples[i].Score, uc)
	}
	trendResult := t.trend.AnalyzeTrends()
	for i := range verdicts {
		verdicts[i].Trend = trendResult
		t.appendRecommendations(verdicts[i])
		t.ml.Train(&msgs[i], verdicts[i].Score)
	}

	return verdicts
}

// AddFeedback forwards a user judgement to the feedback learner.
func (t *ThreatAnalyzer) AddFeedback(msg *core.Message, verdict *core.Verdict, feedback core.UserFeedback) {
	t.feedback.AddFeedback(msg, verdict, feedback)
}

// IntelAnalysis runs the deep scan: the fused verdict plus reputation and
// advisory lookups, with intel findings added on top of the score.
func (t *ThreatAnalyzer) IntelAnalysis(ctx context.Context, msg *core.Message, uc *core.UserContext) *core.Verdict {
	verdict := t.AnalyzeMessage(msg, uc)
	if t.intel == nil || !t.cfg.EnableIntel {
		return verdict
	}

	score := verdict.Score

	// The advisory model reports spam likelihood in [0,1].
	advisory := t.intel.AnalyzeTextLocal(ctx, msg.Subject+"\n"+msg.Body)
	if advisory.SpamScore > intelAdvisorGate {
		score += intelAdvisorBonus
		verdict.Indicators = append(verdict.Indicators, "Local AI model flagged message as likely spam")
	}

	if domain := msg.SenderDomain(); domain != "" {
		rep := t.intel.CheckSenderReputation(ctx, domain)
		if rep.Spamhaus == core.StatusBlacklisted || rep.SURBL == core.StatusBlacklisted {
			score += intelBlacklistBonus
			verdict.Indicators = append(verdict.Indicators, "Sender domain is blacklisted")
		}
	}

	if len(verdict.AnalyzedURLs) > 0 {
		// The two URL sources are independent; a URL flagged by both
		// collects both bonuses.
		for u, check := range t.intel.CheckURLs(ctx, verdict.AnalyzedURLs) {
			if check.SafeBrowsing == core.StatusSuspicious || check.SafeBrowsing == core.StatusBlacklisted {
				score += intelSuspiciousURL
				verdict.Indicators = append(verdict.Indicators, "Reputation services flagged URL: "+u)
			}
			if check.PhishTank == core.StatusSuspicious || check.PhishTank == core.StatusBlacklisted {
				score += intelPhishTankURL
				verdict.Indicators = append(verdict.Indicators, "URL appears in phishing database: "+u)
			}
		}
	}

	if spam := t.intel.SpamScore(msg.Subject + "\n" + msg.Body); spam > intelSpamGate {
		score += intelSpamBonus
		verdict.Indicators = append(verdict.Indicators, "High spam heuristic score")
	}

	if score > 10 {
		score = 10
	}
	verdict.Score = score
	verdict.Level = core.LevelForScore(score)
	if t.cfg.DedupeIndicators {
		verdict.Indicators = dedupe(verdict.Indicators)
	}
	return verdict
}

// fuse combines the sub-scores with the configured weight table.
func (t *ThreatAnalyzer) fuse(
	ruleResult *rules.Result,
	mlResult *core.MLResult,
	contextResult *core.ContextAnalysis,
	clusterResult *core.ClusterAnalysis,
) *core.Verdict {
	w := t.cfg.Fusion

	mlWeight := w.MLLowConfidence
	if mlResult.Confidence > w.MLConfidenceGate {
		mlWeight = w.ML
	}

	weightedSum := w.RuleBased * ruleResult.Average()
	totalWeight := w.RuleBased

	weightedSum += mlWeight * mlResult.Score
	totalWeight += mlWeight

	if contextResult != nil {
		weightedSum += w.Context * contextResult.Score
		totalWeight += w.Context
	}

	clusterComponent := 0.0
	if clusterResult != nil && len(clusterResult.NewPatterns) > 0 {
		clusterComponent = t.cfg.ClusterContribution
	}
	weightedSum += w.Cluster * clusterComponent
	totalWeight += w.Cluster

	score := 0.0
	if totalWeight > 0 {
		score = weightedSum / totalWeight * 10
	}
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}

	indicators := append([]string(nil), ruleResult.Indicators...)
	if contextResult != nil {
		indicators = append(indicators, contextResult.RoleThreats...)
	}
	if clusterResult != nil && len(clusterResult.NewPatterns) > 0 {
		indicators = append(indicators, newPatternIndicator)
	}
	if t.cfg.DedupeIndicators {
		indicators = dedupe(indicators)
	}

	verdict := &core.Verdict{
		Score:        score,
		Level:        core.LevelForScore(score),
		Indicators:   indicators,
		AnalyzedURLs: append([]string(nil), ruleResult.URLs...),
		MLConfidence: mlResult.Confidence,
		Context:      contextResult,
		Cluster:      clusterResult,
		AnalyzedAt:   time.Now(),
	}
	return verdict
}

// applyCluster attaches a batch-level cluster analysis to a verdict and
// folds the pattern signal into its score.
func (t *ThreatAnalyzer) applyCluster(verdict *core.Verdict, clusterResult *core.ClusterAnalysis) {
	verdict.Cluster = clusterResult
	if clusterResult == nil || len(clusterResult.NewPatterns) == 0 {
		return
	}

	w := t.cfg.Fusion
	bonus := w.Cluster * t.cfg.ClusterContribution / (w.RuleBased + w.MLLowConfidence + w.Cluster) * 10
	score := verdict.Score + bonus
	if score > 10 {
		score = 10
	}
	verdict.Score = score
	verdict.Level = core.LevelForScore(score)
	verdict.Indicators = append(verdict.Indicators, newPatternIndicator)
	if t.cfg.DedupeIndicators {
		verdict.Indicators = dedupe(verdict.Indicators)
	}
}

// appendRecommendations folds the trend engine's advice into the
// verdict's indicator list.
func (t *ThreatAnalyzer) appendRecommendations(verdict *core.Verdict) {
	if verdict.Trend == nil || len(verdict.Trend.Recommendations) == 0 {
		return
	}
	verdict.Indicators = append(verdict.Indicators, verdict.Trend.Recommendations...)
	if t.cfg.DedupeIndicators {
		verdict.Indicators = dedupe(verdict.Indicators)
	}
}

// recordThreat feeds the trend engine with one classified observation. The
// recorded severity is the rule-based average, not the fused score.
func (t *ThreatAnalyzer) recordThreat(msg *core.Message, verdict *core.Verdict, ruleScore float64, uc *core.UserContext) {
	record := core.ThreatRecord{
		Timestamp:  verdict.AnalyzedAt,
		Type:       determineThreatType(msg),
		Score:      ruleScore,
		Indicators: verdict.Indicators,
	}
	if uc != nil {
		record.TargetDepartment = uc.Department
		record.TargetRole = uc.Role
	}
	t.trend.Record(record)
}

// determineThreatType classifies a message by its strongest signal.
func determineThreatType(msg *core.Message) core.ThreatType {
	for _, ext := range msg.AttachmentExtensions() {
		for _, risky := range malwareExtensions {
			if ext == risky {
				return core.ThreatMalware
			}
		}
	}

	body := strings.ToLower(msg.Body)
	for _, term := range phishingBodyTerms {
		if strings.Contains(body, term) {
			return core.ThreatPhishing
		}
	}

	subject := strings.ToLower(msg.Subject)
	for _, term := range scamSubjectTerms {
		if strings.Contains(subject, term) {
			return core.ThreatScam
		}
	}

	return core.ThreatSuspicious
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
