package ml

import (
	"math"
	"sort"
)

// Centroid is the mean vector of all training samples sharing one label.
type Centroid struct {
	Label  float64   `json:"label"`
	Vector []float64 `json:"vector"`
	Count  int       `json:"count"`
}

// Classifier is a nearest-centroid classifier over cosine similarity.
// Labels are score buckets; confidence is the maximum class probability.
type Classifier struct {
	Centroids []Centroid `json:"centroids"`
}

// Trained reports whether the classifier has fitted centroids.
func (c *Classifier) Trained() bool {
	return len(c.Centroids) > 0
}

// Fit groups samples by label rounded to the nearest half point and
// computes one centroid per group.
func (c *Classifier) Fit(vectors [][]float64, labels []float64) {
	groups := make(map[float64][]int)
	for i, label := range labels {
		bucket := math.Round(label*2) / 2
		groups[bucket] = append(groups[bucket], i)
	}

	c.Centroids = c.Centroids[:0]
	for label, indices := range groups {
		dim := len(vectors[indices[0]])
		mean := make([]float64, dim)
		for _, idx := range indices {
			for d, x := range vectors[idx] {
				mean[d] += x
			}
		}
		for d := range mean {
			mean[d] /= float64(len(indices))
		}
		normalize(mean)
		c.Centroids = append(c.Centroids, Centroid{Label: label, Vector: mean, Count: len(indices)})
	}
	sort.Slice(c.Centroids, func(i, j int) bool {
		return c.Centroids[i].Label < c.Centroids[j].Label
	})
}

// Predict returns the best-matching label and the maximum class
// probability for the given vector.
func (c *Classifier) Predict(vec []float64) (label float64, confidence float64) {
	probs := c.PredictProba(vec)
	for i, p := range probs {
		if p > confidence {
			confidence = p
			label = c.Centroids[i].Label
		}
	}
	return label, confidence
}

// PredictProba returns one probability per centroid, aligned with the
// Centroids slice. Similarities are shifted to non-negative and
// normalized to sum to one.
func (c *Classifier) PredictProba(vec []float64) []float64 {
	if !c.Trained() {
		return nil
	}
	sims := make([]float64, len(c.Centroids))
	var total float64
	for i, centroid := range c.Centroids {
		// Cosine similarity lands in [-1,1]; shift into [0,2].
		sims[i] = CosineSimilarity(vec, centroid.Vector) + 1
		total += sims[i]
	}
	if total == 0 {
		uniform := 1 / float64(len(sims))
		for i := range sims {
			sims[i] = uniform
		}
		return sims
	}
	for i := range sims {
		sims[i] /= total
	}
	return sims
}

// ProbaFor returns the predicted probability of the given label, or 0 when
// the label has no centroid.
func (c *Classifier) ProbaFor(vec []float64, label float64) float64 {
	probs := c.PredictProba(vec)
	for i, centroid := range c.Centroids {
		if centroid.Label == label {
			return probs[i]
		}
	}
	return 0
}
