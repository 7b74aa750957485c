// Package cluster groups analyzed messages by content similarity to detect
// coordinated attack campaigns. Confirmed patterns that are sufficiently
// different from everything seen before are recorded in a persisted
// history.
package cluster

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/ml"
)

const historyKey = "cluster_history"

// Attribute thresholds for a value to count as characteristic of a
// cluster, and the similarity above which a pattern is considered a
// repeat of a known one.
const (
	indicatorShareThreshold = 0.5
	attributeShareThreshold = 0.3
	noveltyThreshold        = 0.7
	maxExamples             = 3
)

// Sample pairs a message with the analysis results that feed clustering.
type Sample struct {
	Message    core.Message
	Score      float64
	Indicators []string
	URLs       []string
}

// Statistics summarizes the recorded pattern history.
type Statistics struct {
	TotalPatterns      int       `json:"total_patterns"`
	PatternsLast24h    int       `json:"patterns_last_24h"`
	AvgThreatScore     float64   `json:"avg_threat_score"`
	TopCharacteristics []string  `json:"top_characteristics,omitempty"`
	LastDetection      time.Time `json:"last_detection,omitempty"`
}

// topCharacteristicsLimit bounds the characteristics reported by
// Statistics.
const topCharacteristicsLimit = 5

// Analyzer clusters analyzed message batches and tracks novel patterns.
type Analyzer struct {
	mu      sync.Mutex
	cfg     config.ClusterConfig
	store   core.ModelStore
	logger  *zap.Logger
	history []core.ClusterPattern
}

// NewAnalyzer creates a cluster analyzer, restoring the pattern history
// from the store.
func NewAnalyzer(cfg config.ClusterConfig, store core.ModelStore, logger *zap.Logger) *Analyzer {
	a := &Analyzer{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
	if data, ok := store.Load(historyKey); ok {
		if err := json.Unmarshal(data, &a.history); err != nil {
			logger.Error("Failed to decode pattern history, starting empty", zap.Error(err))
			a.history = nil
		}
	}
	return a
}

// AnalyzePatterns clusters one batch of analyzed messages. Batches smaller
// than the minimum cluster size produce an empty analysis with every point
// counted as noise.
func (a *Analyzer) AnalyzePatterns(samples []Sample) *core.ClusterAnalysis {
	a.mu.Lock()
	defer a.mu.Unlock()

	analysis := &core.ClusterAnalysis{
		Clusters:    make(map[int][]core.Message),
		NewPatterns: []core.ClusterPattern{},
	}
	if len(samples) < a.cfg.MinSamples {
		analysis.NoisePoints = len(samples)
		return analysis
	}

	docs := make([]string, len(samples))
	for i := range samples {
		docs[i] = sampleFeatures(&samples[i])
	}
	vectorizer := ml.NewVectorizer(1000)
	vectors := vectorizer.FitTransform(docs)

	labels := dbscan(vectors, a.cfg.Eps, a.cfg.MinSamples)

	grouped := make(map[int][]int)
	for i, label := range labels {
		if label == Noise {
			analysis.NoisePoints++
			continue
		}
		grouped[label] = append(grouped[label], i)
		analysis.Clusters[label] = append(analysis.Clusters[label], samples[i].Message)
	}
	analysis.TotalClusters = len(grouped)

	for label, indices := range grouped {
		pattern := a.buildPattern(samples, indices)
		if a.isNovel(pattern) {
			analysis.NewPatterns = append(analysis.NewPatterns, pattern)
			a.recordPattern(pattern)
			a.logger.Info("Detected new threat pattern",
				zap.String("pattern_id", pattern.ID),
				zap.Int("cluster", label),
				zap.Int("size", pattern.SampleSize))
		}
	}

	return analysis
}

// Statistics reports aggregate numbers over the recorded history.
func (a *Analyzer) Statistics() Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Statistics{TotalPatterns: len(a.history)}
	if len(a.history) == 0 {
		return stats
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	charCounts := make(map[string]int)
	var total float64
	for _, p := range a.history {
		total += p.AvgThreatScore
		if !p.Timestamp.Before(cutoff) {
			stats.PatternsLast24h++
		}
		for _, ind := range p.Characteristics.CommonIndicators {
			charCounts[ind]++
		}
	}
	stats.AvgThreatScore = total / float64(len(a.history))
	stats.LastDetection = a.history[len(a.history)-1].Timestamp
	stats.TopCharacteristics = topValues(charCounts, topCharacteristicsLimit)
	return stats
}

// topValues returns the limit most frequent keys, ties broken
// alphabetically.
func topValues(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// History returns a copy of the recorded pattern history.
func (a *Analyzer) History() []core.ClusterPattern {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.ClusterPattern(nil), a.history...)
}

// buildPattern derives the shared characteristics of one cluster; caller
// holds the lock.
func (a *Analyzer) buildPattern(samples []Sample, indices []int) core.ClusterPattern {
	size := len(indices)

	indicatorCounts := make(map[string]int)
	domainCounts := make(map[string]int)
	attachmentCounts := make(map[string]int)
	urlHostCounts := make(map[string]int)
	var scoreTotal float64

	for _, idx := range indices {
		s := &samples[idx]
		scoreTotal += s.Score
		for _, ind := range uniqueStrings(s.Indicators) {
			indicatorCounts[ind]++
		}
		if domain := s.Message.SenderDomain(); domain != "" {
			domainCounts[domain]++
		}
		for _, ext := range uniqueStrings(s.Message.AttachmentExtensions()) {
			attachmentCounts[ext]++
		}
		for _, host := range uniqueStrings(urlHosts(s.URLs)) {
			urlHostCounts[host]++
		}
	}

	pattern := core.ClusterPattern{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Characteristics: core.PatternCharacteristics{
			CommonIndicators:      frequentValues(indicatorCounts, size, indicatorShareThreshold),
			CommonDomains:         frequentValues(domainCounts, size, attributeShareThreshold),
			CommonAttachmentTypes: frequentValues(attachmentCounts, size, attributeShareThreshold),
			CommonURLPatterns:     frequentValues(urlHostCounts, size, attributeShareThreshold),
		},
		AvgThreatScore: scoreTotal / float64(size),
		SampleSize:     size,
	}

	for i, idx := range indices {
		if i == maxExamples {
			break
		}
		pattern.Examples = append(pattern.Examples, core.PatternExample{
			Subject:    samples[idx].Message.Subject,
			Indicators: samples[idx].Indicators,
		})
	}

	return pattern
}

// isNovel reports whether the pattern's characteristics are sufficiently
// different from every recorded pattern; caller holds the lock.
func (a *Analyzer) isNovel(pattern core.ClusterPattern) bool {
	current := characteristicSet(pattern.Characteristics)
	for _, known := range a.history {
		if jaccard(current, characteristicSet(known.Characteristics)) >= noveltyThreshold {
			return false
		}
	}
	return true
}

// recordPattern appends to the history, trims it to the configured cap and
// persists it; caller holds the lock.
func (a *Analyzer) recordPattern(pattern core.ClusterPattern) {
	a.history = append(a.history, pattern)
	if a.cfg.MaxHistory > 0 && len(a.history) > a.cfg.MaxHistory {
		a.history = a.history[len(a.history)-a.cfg.MaxHistory:]
	}

	data, err := json.Marshal(a.history)
	if err != nil {
		a.logger.Error("Failed to encode pattern history", zap.Error(err))
		return
	}
	if err := a.store.Save(historyKey, data); err != nil {
		a.logger.Error("Failed to persist pattern history", zap.Error(err))
	}
}

// sampleFeatures builds the feature document for one analyzed message.
func sampleFeatures(s *Sample) string {
	parts := []string{s.Message.Subject, s.Message.Body}
	if domain := s.Message.SenderDomain(); domain != "" {
		parts = append(parts, "domain_"+domain)
	}
	for _, ext := range s.Message.AttachmentExtensions() {
		parts = append(parts, "attachment_"+strings.TrimPrefix(ext, "."))
	}
	for _, host := range urlHosts(s.URLs) {
		parts = append(parts, "url_"+host)
	}
	for _, ind := range s.Indicators {
		parts = append(parts, "indicator_"+strings.ReplaceAll(strings.ToLower(ind), " ", "_"))
	}
	return strings.Join(parts, " ")
}

// urlHosts extracts the host portion of each URL.
func urlHosts(urls []string) []string {
	hosts := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := raw
		if idx := strings.Index(trimmed, "://"); idx >= 0 {
			trimmed = trimmed[idx+3:]
		}
		if idx := strings.IndexAny(trimmed, "/?#"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		if trimmed != "" {
			hosts = append(hosts, strings.ToLower(trimmed))
		}
	}
	return hosts
}

// frequentValues returns the values present in at least the given share of
// the cluster's members.
func frequentValues(counts map[string]int, size int, threshold float64) []string {
	values := []string{}
	for value, count := range counts {
		if float64(count)/float64(size) >= threshold {
			values = append(values, value)
		}
	}
	return values
}

// characteristicSet flattens characteristics into a comparable string set.
func characteristicSet(c core.PatternCharacteristics) map[string]struct{} {
	set := make(map[string]struct{})
	for _, v := range c.CommonIndicators {
		set["indicator:"+v] = struct{}{}
	}
	for _, v := range c.CommonDomains {
		set["domain:"+v] = struct{}{}
	}
	for _, v := range c.CommonAttachmentTypes {
		set["attachment:"+v] = struct{}{}
	}
	for _, v := range c.CommonURLPatterns {
		set["url:"+v] = struct{}{}
	}
	return set
}

// jaccard computes intersection-over-union of two string sets. Two empty
// sets are considered identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for v := range a {
		if _, ok := b[v]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func uniqueStrings(values []string) []string {
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
