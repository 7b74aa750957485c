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

func testMLConfig() config.MLConfig {
	return config.MLConfig{MaxFeatures: 100, RetrainEvery: 2, MinSamples: 4}
}

func TestAnalyzeColdStart(t *testing.T) {
	a := NewAnalyzer(testMLConfig(), store.NewMemoryStore(), zap.NewNop())

	result := a.Analyze(&core.Message{Subject: "anything"})

	assert.Zero(t, result.Score)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.TopFeatures)
}

func TestTrainAndAnalyze(t *testing.T) {
	a := NewAnalyzer(testMLConfig(), store.NewMemoryStore(), zap.NewNop())

	spam := core.Message{Subject: "Konto gesperrt", Body: "sofort passwort bank dringend"}
	ham := core.Message{Subject: "Newsletter", Body: "angebot rabatt danke bestätigung"}

	a.Train(&spam, 9)
	a.Train(&ham, 1)
	a.Train(&spam, 9)
	a.Train(&ham, 1)
	a.WaitForRetrain()

	result := a.Analyze(&core.Message{Subject: "Konto dringend", Body: "passwort sofort"})
	assert.Equal(t, 9.0, result.Score)
	assert.Greater(t, result.Confidence, 0.5)
	assert.NotEmpty(t, result.TopFeatures)
}

func TestModelPersistsAcrossRestarts(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := testMLConfig()

	a := NewAnalyzer(cfg, st, zap.NewNop())
	for i := 0; i < 4; i++ {
		a.Train(&core.Message{Subject: fmt.Sprintf("msg %d konto", i)}, float64(i%2)*8)
	}
	a.WaitForRetrain()

	restored := NewAnalyzer(cfg, st, zap.NewNop())
	assert.Equal(t, 4, restored.SampleCount())

	result := restored.Analyze(&core.Message{Subject: "konto"})
	assert.Greater(t, result.Confidence, 0.0)
}

func TestCorruptArtifactsStartFresh(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Save("training_data", []byte("not json")))
	require.NoError(t, st.Save("ml_model", []byte("{broken")))

	a := NewAnalyzer(testMLConfig(), st, zap.NewNop())

	assert.Zero(t, a.SampleCount())
	result := a.Analyze(&core.Message{Subject: "anything"})
	assert.Zero(t, result.Score)
}
