package contextaware

import (
	"math"
)

// RoleModel is a per-role anomaly model over a small fixed feature space
// (normalized hour, known-contact flag, clearance level, attachment flag).
// Scores follow the anomaly-detection convention of [-1,1] where more
// negative means more anomalous.
type RoleModel struct {
	Role  string    `json:"role"`
	Mean  []float64 `json:"mean"`
	Var   []float64 `json:"var"`
	Count int       `json:"count"`
}

// NewRoleModel creates an untrained model for a role.
func NewRoleModel(role string) *RoleModel {
	return &RoleModel{Role: role}
}

// Trained reports whether the model has seen any samples.
func (m *RoleModel) Trained() bool {
	return m.Count > 0 && len(m.Mean) > 0
}

// Fit estimates per-feature mean and variance from the sample set.
func (m *RoleModel) Fit(samples [][]float64) {
	if len(samples) == 0 {
		return
	}
	dim := len(samples[0])
	mean := make([]float64, dim)
	variance := make([]float64, dim)

	for _, sample := range samples {
		for d, x := range sample {
			mean[d] += x
		}
	}
	for d := range mean {
		mean[d] /= float64(len(samples))
	}
	for _, sample := range samples {
		for d, x := range sample {
			diff := x - mean[d]
			variance[d] += diff * diff
		}
	}
	for d := range variance {
		variance[d] /= float64(len(samples))
	}

	m.Mean = mean
	m.Var = variance
	m.Count = len(samples)
}

// Score rates a feature vector against the fitted distribution. The mean
// absolute z-score across features is folded into [-1,1]: 0 deviation maps
// to 1, three standard deviations or more to -1.
func (m *RoleModel) Score(features []float64) float64 {
	if !m.Trained() || len(features) != len(m.Mean) {
		return 0
	}

	var total float64
	for d, x := range features {
		std := math.Sqrt(m.Var[d])
		if std < 0.05 {
			std = 0.05
		}
		total += math.Abs(x-m.Mean[d]) / std
	}
	z := total / float64(len(features))

	score := 1 - 2*math.Min(z/3, 1)
	return score
}
