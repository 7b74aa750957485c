// Package trend maintains a rolling threat history and derives windowed
// statistics, naive forecasts and defensive recommendations from it.
package trend

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

// Trailing window durations keyed by the names used in the analysis
// output.
var windows = map[string]time.Duration{
	"short":  24 * time.Hour,
	"medium": 7 * 24 * time.Hour,
	"long":   30 * 24 * time.Hour,
}

const (
	maxHistory         = 1000
	severityAlertLevel = 7.0
)

// Engine accumulates threat records and analyzes them on demand. History
// is kept in memory and capped at the most recent entries.
type Engine struct {
	mu      sync.Mutex
	logger  *zap.Logger
	history []core.ThreatRecord
	now     func() time.Time
}

// NewEngine creates an empty trend engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger, now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Record appends one threat observation. Missing fields are normalized:
// a zero timestamp becomes now, an empty type becomes unknown.
func (e *Engine) Record(record core.ThreatRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = e.now()
	}
	if record.Type == "" {
		record.Type = core.ThreatUnknown
	}

	e.history = append(e.history, record)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}

// AnalyzeTrends computes windowed statistics, forecasts and
// recommendations over the current history.
func (e *Engine) AnalyzeTrends() *core.TrendAnalysis {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	analysis := &core.TrendAnalysis{
		Windows:         make(map[string]core.WindowStats, len(windows)),
		Recommendations: []string{},
	}

	for name, span := range windows {
		analysis.Windows[name] = e.windowStats(now, span)
	}

	short := analysis.Windows["short"]
	medium := analysis.Windows["medium"]

	// Persistence forecast: tomorrow looks like today, next week like the
	// trailing week.
	analysis.Forecasts = core.Forecasts{
		Next24h:    short.TotalThreats,
		NextWeek:   medium.TotalThreats,
		Confidence: math.Min(float64(len(e.history))/100, 0.99),
	}

	analysis.Recommendations = recommendations(short)

	return analysis
}

// HistorySize returns the number of retained records.
func (e *Engine) HistorySize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// windowStats aggregates records inside one trailing window; caller holds
// the lock.
func (e *Engine) windowStats(now time.Time, span time.Duration) core.WindowStats {
	stats := core.WindowStats{TypeDistribution: make(map[core.ThreatType]int)}
	cutoff := now.Add(-span)

	var severityTotal float64
	for _, record := range e.history {
		if record.Timestamp.Before(cutoff) {
			continue
		}
		stats.TotalThreats++
		severityTotal += record.Score
		stats.TypeDistribution[record.Type]++
	}
	if stats.TotalThreats > 0 {
		stats.AvgSeverity = severityTotal / float64(stats.TotalThreats)
	}
	return stats
}

// recommendations derives defensive advice from the short-term window.
func recommendations(stats core.WindowStats) []string {
	recs := []string{}
	if stats.TotalThreats == 0 {
		return recs
	}

	var dominant core.ThreatType
	dominantCount := 0
	for threatType, count := range stats.TypeDistribution {
		if count > dominantCount {
			dominant = threatType
			dominantCount = count
		}
	}

	switch dominant {
	case core.ThreatPhishing:
		recs = append(recs,
			"Increase phishing awareness: remind staff not to enter credentials from email links")
	case core.ThreatMalware:
		recs = append(recs,
			"Tighten attachment policy: block executable attachments at the gateway")
	case core.ThreatScam:
		recs = append(recs,
			"Warn staff about prize and lottery scams circulating in current mail")
	default:
		recs = append(recs,
			fmt.Sprintf("Review recent suspicious mail manually (%d threats in the last 24h)", stats.TotalThreats))
	}

	if stats.AvgSeverity > severityAlertLevel {
		recs = append(recs,
			"Average threat severity is high, escalate to the security team")
	}

	return recs
}
