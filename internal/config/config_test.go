package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "imap", cfg.GetString("source.type"))
	assert.Equal(t, 50, cfg.GetInt("source.max_messages"))
	assert.Equal(t, "file", cfg.GetString("store.type"))
	assert.False(t, cfg.GetBool("analysis.enable_intel"))

	interval, err := cfg.GetDuration("source.scan_interval")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, interval)
}

func TestFusionDefaultsSumBelowOne(t *testing.T) {
	w := NewFromViper(NewEmptyViper()).GetAnalysis().Fusion

	assert.Equal(t, 0.4, w.RuleBased)
	assert.Equal(t, 0.2, w.ML)
	assert.Equal(t, 0.1, w.MLLowConfidence)
	assert.Equal(t, 0.2, w.Context)
	assert.Equal(t, 0.1, w.Cluster)
	assert.LessOrEqual(t, w.RuleBased+w.ML+w.Context+w.Cluster, 1.0)
}

func TestRuleTablesPopulated(t *testing.T) {
	rules := NewFromViper(NewEmptyViper()).GetRules()

	assert.Contains(t, rules.Keywords.HighRisk, "dringend")
	assert.Contains(t, rules.Extensions.HighRisk, ".exe")
	assert.Contains(t, rules.SuspiciousTLDs, ".xyz")
	assert.Contains(t, rules.UrgencyTerms, "sofort")
	assert.Equal(t, 3.0, rules.Weights.AttachmentHighRiskExt)
}

func TestOverrides(t *testing.T) {
	v := NewEmptyViper()
	v.Set("cluster.min_samples", 5)
	v.Set("ml.max_features", 200)

	cfg := NewFromViper(v)

	assert.Equal(t, 5, cfg.GetCluster().MinSamples)
	assert.Equal(t, 200, cfg.GetML().MaxFeatures)
}

func TestGetDurationInvalid(t *testing.T) {
	v := NewEmptyViper()
	v.Set("source.scan_interval", "bald")

	_, err := NewFromViper(v).GetDuration("source.scan_interval")
	assert.Error(t, err)
}
