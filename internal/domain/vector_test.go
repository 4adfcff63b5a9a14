package domain

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "dim mismatch", a: []float32{1, 2}, b: []float32{1, 2, 3}, wantErr: true},
		{name: "empty", a: nil, b: nil, wantErr: true},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrVectorDimMismatch) {
					t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// A vector scored against itself is the maximum attainable score for the
// space: the sanity bound for all semantic scores.
func TestSimilarityScore_SelfIsMax(t *testing.T) {
	vec := []float32{0.3, -0.7, 0.12, 0.88}
	cos, err := CosineSimilarity(vec, vec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := SimilarityScore(cos); math.Abs(got-100) > 1e-6 {
		t.Fatalf("self-similarity score = %v, want 100", got)
	}
}

func TestSimilarityScore_Bounds(t *testing.T) {
	tests := []struct {
		cos  float64
		want float64
	}{
		{cos: 1, want: 100},
		{cos: -1, want: 0},
		{cos: 0, want: 50},
		{cos: 1.5, want: 100},  // clamped
		{cos: -1.5, want: 0},   // clamped
	}
	for _, tt := range tests {
		if got := SimilarityScore(tt.cos); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SimilarityScore(%v) = %v, want %v", tt.cos, got, tt.want)
		}
	}
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75, 0, 1e-8}
	decoded, err := DecodeVector(EncodeVector(vec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != len(vec) {
		t.Fatalf("got %d dims, want %d", len(decoded), len(vec))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Errorf("dim %d: got %v, want %v", i, decoded[i], vec[i])
		}
	}
}

func TestDecodeVector_InvalidLength(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for non-multiple-of-4 data")
	}
}
