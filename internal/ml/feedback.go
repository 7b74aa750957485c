package ml

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

const (
	feedbackDataKey  = "feedback_data"
	feedbackModelKey = "feedback_model"
)

const feedbackIndicator = "Adjusted based on company feedback"

// LearningStats summarizes the feedback learner's state.
type LearningStats struct {
	TotalSamples         int            `json:"total_samples"`
	Accuracy             float64        `json:"accuracy"`
	CategoryDistribution map[string]int `json:"category_distribution"`
	LastRetrain          string         `json:"last_retrain"`
}

// FeedbackLearner keeps an append-only log of user feedback and trains a
// binary corrective model from it. Once confident, it nudges preliminary
// verdicts toward the learned judgement.
type FeedbackLearner struct {
	mu          sync.Mutex
	cfg         config.FeedbackConfig
	store       core.ModelStore
	logger      *zap.Logger
	entries     []core.FeedbackEntry
	vectorizer  *Vectorizer
	model       *Classifier
	lastRetrain time.Time
	retraining  sync.WaitGroup
}

// NewFeedbackLearner creates a learner, restoring the feedback log and any
// trained corrective model from the store.
func NewFeedbackLearner(cfg config.FeedbackConfig, store core.ModelStore, logger *zap.Logger) *FeedbackLearner {
	l := &FeedbackLearner{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		vectorizer: NewVectorizer(1000),
		model:      &Classifier{},
	}

	if data, ok := store.Load(feedbackDataKey); ok {
		if err := json.Unmarshal(data, &l.entries); err != nil {
			logger.Error("Failed to decode feedback log, starting fresh", zap.Error(err))
			l.entries = nil
		}
	}
	if data, ok := store.Load(feedbackModelKey); ok {
		var snap modelSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			logger.Error("Failed to decode feedback model, starting untrained", zap.Error(err))
		} else if snap.Vectorizer != nil && snap.Model != nil {
			l.vectorizer = snap.Vectorizer
			l.model = snap.Model
			l.lastRetrain = snap.TrainedAt
		}
	}

	return l
}

// AddFeedback appends a feedback entry for an analyzed message and
// schedules a retrain once the log is large enough, on every Nth addition.
func (l *FeedbackLearner) AddFeedback(msg *core.Message, verdict *core.Verdict, feedback core.UserFeedback) {
	l.mu.Lock()
	entry := core.FeedbackEntry{
		Timestamp:      time.Now(),
		Subject:        msg.Subject,
		Sender:         msg.Sender,
		HasAttachments: len(msg.Attachments) > 0,
		BodyLength:     len(msg.Body),
		Score:          verdict.Score,
		Level:          verdict.Level,
		Indicators:     verdict.Indicators,
		Feedback:       feedback,
	}
	l.entries = append(l.entries, entry)
	count := len(l.entries)
	l.persistEntries()
	l.mu.Unlock()

	if count >= l.cfg.MinSamples && count%l.cfg.RetrainEvery == 0 {
		l.retraining.Add(1)
		go func() {
			defer l.retraining.Done()
			l.retrain()
		}()
	}
}

// AdjustAnalysis blends the learned judgement into a preliminary verdict
// when the model is confident enough. The verdict is modified in place and
// returned for convenience.
func (l *FeedbackLearner) AdjustAnalysis(msg *core.Message, verdict *core.Verdict) *core.Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.model.Trained() || !l.vectorizer.Fitted() {
		return verdict
	}

	vec := l.vectorizer.Transform(feedbackFeatures(msg))
	probs := l.model.PredictProba(vec)
	confidence := 0.0
	for _, p := range probs {
		if p > confidence {
			confidence = p
		}
	}

	if confidence > l.cfg.ConfidenceThreshold {
		correctProba := l.model.ProbaFor(vec, 1)
		adjusted := verdict.Score*l.cfg.OriginalWeight +
			correctProba*l.cfg.FeedbackScale*l.cfg.FeedbackWeight
		if adjusted > 10 {
			adjusted = 10
		}
		verdict.Score = adjusted
		verdict.Level = core.LevelForScore(adjusted)

		if confidence > l.cfg.HighConfidenceThreshold && !contains(verdict.Indicators, feedbackIndicator) {
			verdict.Indicators = append(verdict.Indicators, feedbackIndicator)
		}
	}

	return verdict
}

// Stats reports sample count, accuracy and category distribution.
func (l *FeedbackLearner) Stats() (LearningStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return LearningStats{}, fmt.Errorf("no feedback data available")
	}

	correct := 0
	categories := make(map[string]int)
	for _, entry := range l.entries {
		if entry.Feedback.IsCorrect {
			correct++
		}
		categories[entry.Feedback.CorrectCategory]++
	}

	stats := LearningStats{
		TotalSamples:         len(l.entries),
		Accuracy:             float64(correct) / float64(len(l.entries)),
		CategoryDistribution: categories,
	}
	if !l.lastRetrain.IsZero() {
		stats.LastRetrain = l.lastRetrain.Format(time.RFC3339)
	}
	return stats, nil
}

// WaitForRetrain blocks until any in-flight retrain finishes.
func (l *FeedbackLearner) WaitForRetrain() {
	l.retraining.Wait()
}

// retrain refits the corrective model on the full feedback log.
func (l *FeedbackLearner) retrain() {
	l.mu.Lock()
	defer l.mu.Unlock()

	docs := make([]string, len(l.entries))
	labels := make([]float64, len(l.entries))
	for i, entry := range l.entries {
		docs[i] = entryFeatures(&entry)
		if entry.Feedback.IsCorrect {
			labels[i] = 1
		}
	}

	vectorizer := NewVectorizer(1000)
	vectors := vectorizer.FitTransform(docs)
	model := &Classifier{}
	model.Fit(vectors, labels)

	l.vectorizer = vectorizer
	l.model = model
	l.lastRetrain = time.Now()

	snap := modelSnapshot{Vectorizer: vectorizer, Model: model, TrainedAt: l.lastRetrain}
	data, err := json.Marshal(snap)
	if err != nil {
		l.logger.Error("Failed to encode feedback model", zap.Error(err))
		return
	}
	if err := l.store.Save(feedbackModelKey, data); err != nil {
		l.logger.Error("Failed to persist feedback model", zap.Error(err))
		return
	}
	l.logger.Info("Retrained feedback model", zap.Int("samples", len(l.entries)))
}

// persistEntries writes the feedback log; caller holds the lock.
func (l *FeedbackLearner) persistEntries() {
	data, err := json.Marshal(l.entries)
	if err != nil {
		l.logger.Error("Failed to encode feedback log", zap.Error(err))
		return
	}
	if err := l.store.Save(feedbackDataKey, data); err != nil {
		l.logger.Error("Failed to persist feedback log", zap.Error(err))
	}
}

// feedbackFeatures builds the corrective model's feature string for a
// live message. It must stay in lockstep with entryFeatures so predict
// and training vocabularies match.
func feedbackFeatures(msg *core.Message) string {
	return buildFeatures(msg.Subject, msg.Sender, len(msg.Attachments) > 0)
}

// entryFeatures builds the same feature string from a logged entry.
func entryFeatures(entry *core.FeedbackEntry) string {
	return buildFeatures(entry.Subject, entry.Sender, entry.HasAttachments)
}

func buildFeatures(subject, sender string, hasAttachments bool) string {
	parts := []string{
		subject,
		sender,
		fmt.Sprintf("has_attachments_%t", hasAttachments),
	}
	msg := core.Message{Sender: sender}
	if domain := msg.SenderDomain(); domain != "" {
		parts = append(parts, "domain_"+domain)
	}
	return strings.Join(parts, " ")
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
