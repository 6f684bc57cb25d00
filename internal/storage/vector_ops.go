package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// ScoredID pairs a term id with its similarity to a query vector
type ScoredID struct {
	ID    string
	Score float64
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Overflowing inputs score 0 rather than NaN.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}

// sortScored sorts by score descending; equal scores keep id order so
// repeated queries return identical rankings
func sortScored(scored []ScoredID) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
}

// topK truncates an already sorted slice to at most limit entries.
// A non-positive limit keeps everything.
func topK(scored []ScoredID, limit int) []ScoredID {
	if limit <= 0 || limit > len(scored) {
		limit = len(scored)
	}
	return scored[:limit]
}

// RankBySimilarity scores every vector against query and returns the best
// limit ids in non-increasing score order. Vectors whose dimension differs
// from the query are skipped.
func RankBySimilarity(query []float32, ids []string, vectors [][]float32, limit int) []ScoredID {
	scored := make([]ScoredID, 0, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != len(query) {
			continue
		}
		scored = append(scored, ScoredID{ID: id, Score: cosineSimilarity(query, vectors[i])})
	}
	sortScored(scored)
	return topK(scored, limit)
}

// SerializeVector is an exported helper for index building
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for index loading
func DeserializeVector(blob []byte) ([]float32, error) {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
