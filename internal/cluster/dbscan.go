package cluster

import (
	"github.com/AureliusCaelum/mail-analyzer/internal/ml"
)

// Noise is the cluster label assigned to points that belong to no cluster.
const Noise = -1

// dbscan labels each vector with a cluster index starting at 0, or Noise.
// Distance is cosine distance (1 - cosine similarity); eps is the maximum
// distance for neighborhood membership and minPts the minimum neighborhood
// size (including the point itself) for a core point.
func dbscan(vectors [][]float64, eps float64, minPts int) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	visited := make([]bool, n)

	neighborhood := func(idx int) []int {
		var neighbors []int
		for j := 0; j < n; j++ {
			if 1-ml.CosineSimilarity(vectors[idx], vectors[j]) <= eps {
				neighbors = append(neighbors, j)
			}
		}
		return neighbors
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := neighborhood(i)
		if len(neighbors) < minPts {
			continue
		}

		labels[i] = cluster
		// Expand the cluster over the growing seed set.
		for k := 0; k < len(neighbors); k++ {
			j := neighbors[k]
			if !visited[j] {
				visited[j] = true
				if next := neighborhood(j); len(next) >= minPts {
					neighbors = append(neighbors, next...)
				}
			}
			if labels[j] == Noise {
				labels[j] = cluster
			}
		}
		cluster++
	}

	return labels
}
