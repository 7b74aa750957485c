// Package ml implements the learned scoring models: a TF-IDF text
// vectorizer, a nearest-centroid classifier, the continuously trained
// message classifier and the feedback learner. The math is deliberately
// self-contained; model state is persisted as JSON through the model store.
package ml

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Vectorizer builds TF-IDF weighted term vectors over a capped vocabulary.
// Fields are exported so a fitted vectorizer round-trips through JSON.
type Vectorizer struct {
	MaxFeatures int            `json:"max_features"`
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	Terms       []string       `json:"terms"`
}

// NewVectorizer creates an unfitted vectorizer with the given vocabulary cap.
func NewVectorizer(maxFeatures int) *Vectorizer {
	return &Vectorizer{MaxFeatures: maxFeatures}
}

// Fitted reports whether Fit has been called.
func (v *Vectorizer) Fitted() bool {
	return len(v.Vocabulary) > 0
}

// Fit learns the vocabulary and inverse document frequencies from a corpus.
// Terms are ranked by document frequency and capped at MaxFeatures.
func (v *Vectorizer) Fit(docs []string) {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range Tokenize(doc) {
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}

	n := float64(len(docs))
	v.Terms = terms
	v.Vocabulary = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, term := range terms {
		v.Vocabulary[term] = i
		// Smoothed IDF keeps terms present in every document non-zero.
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
}

// Transform maps a document to an L2-normalized TF-IDF vector.
func (v *Vectorizer) Transform(doc string) []float64 {
	vec := make([]float64, len(v.Terms))
	if !v.Fitted() {
		return vec
	}
	for _, term := range Tokenize(doc) {
		if idx, ok := v.Vocabulary[term]; ok {
			vec[idx] += v.IDF[idx]
		}
	}
	normalize(vec)
	return vec
}

// FitTransform fits on the corpus and returns the vector for each document.
func (v *Vectorizer) FitTransform(docs []string) [][]float64 {
	v.Fit(docs)
	vectors := make([][]float64, len(docs))
	for i, doc := range docs {
		vectors[i] = v.Transform(doc)
	}
	return vectors
}

// Tokenize lowercases the text and splits it on non-alphanumeric runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors; it returns 0 when either vector is zero.
func CosineSimilarity(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(vec []float64) {
	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}
