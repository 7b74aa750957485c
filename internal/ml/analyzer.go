package ml

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

const (
	trainingDataKey = "training_data"
	modelKey        = "ml_model"
)

type trainingSample struct {
	Features string  `json:"features"`
	Score    float64 `json:"score"`
	Metadata struct {
		Timestamp    string `json:"timestamp"`
		SenderDomain string `json:"sender_domain"`
	} `json:"metadata"`
}

type modelSnapshot struct {
	Vectorizer *Vectorizer `json:"vectorizer"`
	Model      *Classifier `json:"model"`
	TrainedAt  time.Time   `json:"trained_at"`
}

// Analyzer is the general-purpose learned classifier. It accumulates
// {features, threat_score} pairs and refits vectorizer and model from
// scratch on every Nth sample; before the first fit it reports the cold
// start default of score 0, confidence 0.
type Analyzer struct {
	mu         sync.Mutex
	cfg        config.MLConfig
	store      core.ModelStore
	logger     *zap.Logger
	vectorizer *Vectorizer
	model      *Classifier
	samples    []trainingSample
	retraining sync.WaitGroup
}

// NewAnalyzer creates an analyzer, restoring any persisted training data
// and model snapshot from the store.
func NewAnalyzer(cfg config.MLConfig, store core.ModelStore, logger *zap.Logger) *Analyzer {
	a := &Analyzer{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		vectorizer: NewVectorizer(cfg.MaxFeatures),
		model:      &Classifier{},
	}

	if data, ok := store.Load(trainingDataKey); ok {
		if err := json.Unmarshal(data, &a.samples); err != nil {
			logger.Error("Failed to decode training data, starting fresh", zap.Error(err))
			a.samples = nil
		}
	}
	if data, ok := store.Load(modelKey); ok {
		var snap modelSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			logger.Error("Failed to decode model snapshot, starting untrained", zap.Error(err))
		} else if snap.Vectorizer != nil && snap.Model != nil {
			a.vectorizer = snap.Vectorizer
			a.model = snap.Model
		}
	}

	return a
}

// Analyze scores a message with the trained model. Any failure degrades to
// the cold-start default and is never propagated.
func (a *Analyzer) Analyze(msg *core.Message) *core.MLResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.model.Trained() || !a.vectorizer.Fitted() {
		return &core.MLResult{}
	}

	features := extractFeatures(msg)
	vec := a.vectorizer.Transform(features)
	score, confidence := a.model.Predict(vec)

	return &core.MLResult{
		Score:       score,
		Confidence:  confidence,
		TopFeatures: a.importantFeatures(vec),
	}
}

// Train appends a sample and schedules a full retrain off the hot path on
// every Nth addition.
func (a *Analyzer) Train(msg *core.Message, threatScore float64) {
	a.mu.Lock()
	sample := trainingSample{
		Features: extractFeatures(msg),
		Score:    threatScore,
	}
	if !msg.Timestamp.IsZero() {
		sample.Metadata.Timestamp = msg.Timestamp.Format(time.RFC3339)
	}
	sample.Metadata.SenderDomain = msg.SenderDomain()
	a.samples = append(a.samples, sample)
	count := len(a.samples)
	a.persistSamples()
	a.mu.Unlock()

	if count >= a.cfg.MinSamples && count%a.cfg.RetrainEvery == 0 {
		a.retraining.Add(1)
		go func() {
			defer a.retraining.Done()
			a.retrain()
		}()
	}
}

// SampleCount returns the number of accumulated training samples.
func (a *Analyzer) SampleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// WaitForRetrain blocks until any in-flight retrain finishes. Intended for
// tests and shutdown.
func (a *Analyzer) WaitForRetrain() {
	a.retraining.Wait()
}

// retrain refits vectorizer and model from scratch on the full training
// set and persists the snapshot.
func (a *Analyzer) retrain() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.samples) < a.cfg.MinSamples {
		return
	}

	docs := make([]string, len(a.samples))
	labels := make([]float64, len(a.samples))
	for i, sample := range a.samples {
		docs[i] = sample.Features
		labels[i] = sample.Score
	}

	vectorizer := NewVectorizer(a.cfg.MaxFeatures)
	vectors := vectorizer.FitTransform(docs)
	model := &Classifier{}
	model.Fit(vectors, labels)

	a.vectorizer = vectorizer
	a.model = model

	snap := modelSnapshot{Vectorizer: vectorizer, Model: model, TrainedAt: time.Now()}
	data, err := json.Marshal(snap)
	if err != nil {
		a.logger.Error("Failed to encode model snapshot", zap.Error(err))
		return
	}
	if err := a.store.Save(modelKey, data); err != nil {
		a.logger.Error("Failed to persist model snapshot", zap.Error(err))
		return
	}
	a.logger.Info("Retrained message classifier",
		zap.Int("samples", len(a.samples)),
		zap.Int("vocabulary", len(vectorizer.Terms)))
}

// persistSamples writes the training log; caller holds the lock.
func (a *Analyzer) persistSamples() {
	data, err := json.Marshal(a.samples)
	if err != nil {
		a.logger.Error("Failed to encode training data", zap.Error(err))
		return
	}
	if err := a.store.Save(trainingDataKey, data); err != nil {
		a.logger.Error("Failed to persist training data", zap.Error(err))
	}
}

// importantFeatures returns the five heaviest terms of a transformed
// vector; caller holds the lock.
func (a *Analyzer) importantFeatures(vec []float64) []core.WeightedFeature {
	features := make([]core.WeightedFeature, 0, 5)
	for i, weight := range vec {
		if weight > 0.01 {
			features = append(features, core.WeightedFeature{Term: a.vectorizer.Terms[i], Weight: weight})
		}
	}
	sort.Slice(features, func(i, j int) bool { return features[i].Weight > features[j].Weight })
	if len(features) > 5 {
		features = features[:5]
	}
	return features
}

// extractFeatures concatenates subject, body, sender and attachment
// extensions into one feature string.
func extractFeatures(msg *core.Message) string {
	parts := []string{msg.Subject, msg.Body, msg.Sender}
	parts = append(parts, msg.AttachmentExtensions()...)
	return strings.Join(parts, " ")
}
