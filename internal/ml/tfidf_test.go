package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Klicken Sie HIER: http://a.xyz/login!")
	assert.Equal(t, []string{"klicken", "sie", "hier", "http", "a", "xyz", "login"}, tokens)
}

func TestVectorizerFitTransform(t *testing.T) {
	docs := []string{
		"konto gesperrt bank",
		"konto update bank",
		"newsletter angebot",
	}

	v := NewVectorizer(10)
	vectors := v.FitTransform(docs)

	require.True(t, v.Fitted())
	require.Len(t, vectors, 3)

	// Vectors are L2-normalized.
	for _, vec := range vectors {
		var norm float64
		for _, x := range vec {
			norm += x * x
		}
		assert.InDelta(t, 1.0, norm, 1e-9)
	}

	// Documents sharing terms are closer than unrelated ones.
	assert.Greater(t,
		CosineSimilarity(vectors[0], vectors[1]),
		CosineSimilarity(vectors[0], vectors[2]))
}

func TestVectorizerCapsVocabulary(t *testing.T) {
	v := NewVectorizer(2)
	v.Fit([]string{"a b c d", "a b c", "a b"})

	assert.Len(t, v.Terms, 2)
	// The cap keeps the most frequent terms.
	assert.Contains(t, v.Vocabulary, "a")
	assert.Contains(t, v.Vocabulary, "b")
}

func TestTransformUnknownTermsIsZero(t *testing.T) {
	v := NewVectorizer(10)
	v.Fit([]string{"konto bank"})

	vec := v.Transform("völlig unbekannte wörter")
	for _, x := range vec {
		assert.Zero(t, x)
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

func TestClassifierFitPredict(t *testing.T) {
	docs := []string{
		"konto gesperrt sofort bank",
		"konto passwort dringend bank",
		"newsletter angebot rabatt",
		"newsletter bestätigung danke",
	}
	labels := []float64{8, 8, 1, 1}

	v := NewVectorizer(100)
	vectors := v.FitTransform(docs)

	c := &Classifier{}
	c.Fit(vectors, labels)
	require.True(t, c.Trained())
	require.Len(t, c.Centroids, 2)

	label, confidence := c.Predict(v.Transform("konto dringend gesperrt"))
	assert.Equal(t, 8.0, label)
	assert.Greater(t, confidence, 0.5)

	label, _ = c.Predict(v.Transform("newsletter rabatt"))
	assert.Equal(t, 1.0, label)
}

func TestClassifierBucketsLabels(t *testing.T) {
	vectors := [][]float64{{1, 0}, {0.9, 0.1}, {0, 1}}
	c := &Classifier{}
	c.Fit(vectors, []float64{7.1, 6.9, 1.0})

	// 7.1 and 6.9 both round to the 7.0 bucket.
	require.Len(t, c.Centroids, 2)
	assert.Equal(t, 1.0, c.Centroids[0].Label)
	assert.Equal(t, 7.0, c.Centroids[1].Label)
	assert.Equal(t, 2, c.Centroids[1].Count)
}

func TestPredictProbaSumsToOne(t *testing.T) {
	c := &Classifier{}
	c.Fit([][]float64{{1, 0}, {0, 1}}, []float64{0, 10})

	probs := c.PredictProba([]float64{math.Sqrt2 / 2, math.Sqrt2 / 2})
	require.Len(t, probs, 2)

	var total float64
	for _, p := range probs {
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}
