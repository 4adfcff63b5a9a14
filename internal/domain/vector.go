package domain

import (
	"encoding/binary"
	"fmt"
	"math"
)

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns ErrVectorDimMismatch when lengths differ: comparing vectors from
// different model configurations is a configuration error, not a low score.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine: got %d and %d dims: %w", len(a), len(b), ErrVectorDimMismatch)
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("cosine: empty vectors: %w", ErrVectorDimMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// SimilarityScore maps a cosine similarity in [-1, 1] onto the 0-100 scale
// used for match classification.
func SimilarityScore(cos float64) float64 {
	score := (cos + 1) / 2 * 100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// EncodeVector serializes a vector as little-endian float32 bytes for
// storage in a bytea column.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserializes little-endian float32 bytes back into a vector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
