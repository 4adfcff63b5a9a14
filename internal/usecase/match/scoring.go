package match

import (
	"math"
	"strings"

	"github.com/casavia/matchengine/internal/domain"
)

// Constraint-proximity scoring weights. The maximum attainable constraint
// score (40 + 15 + 10 + 4 = 69) stays below the default match threshold:
// without semantic evidence a candidate can only ever be a recommendation.
const (
	constraintBase    = 40.0
	priceFitWeight    = 15.0
	locationFitWeight = 10.0
	typeMatchWeight   = 4.0
)

// constraintScore rates a candidate purely by how well it fits the hard
// constraints. Used for candidates without a current embedding and for fully
// degraded (provider-down) computations.
func constraintScore(p *domain.Property, c domain.Constraints) float64 {
	score := constraintBase

	score += priceFitWeight * priceFit(p.Price, c)

	if locationMatches(p, c) {
		score += locationFitWeight
	}
	if c.Type != "" && p.Type == c.Type {
		score += typeMatchWeight
	}

	return math.Round(score*10) / 10
}

// priceFit returns 1.0 at the budget midpoint falling linearly to 0.0 at a
// full midpoint's distance away. Without a budget or price there is nothing
// to rate and the factor is neutral zero.
func priceFit(price float64, c domain.Constraints) float64 {
	mid := c.BudgetMidpoint()
	if mid <= 0 || price <= 0 {
		return 0
	}
	fit := 1 - math.Abs(price-mid)/mid
	if fit < 0 {
		return 0
	}
	return fit
}

func locationMatches(p *domain.Property, c domain.Constraints) bool {
	if c.District != "" {
		return strings.EqualFold(p.District, c.District)
	}
	if c.City != "" {
		return strings.EqualFold(p.City, c.City)
	}
	return false
}

// explainSemantic builds the user-facing explanation for a semantically
// scored entry from its dominant contributing factors.
func explainSemantic(score float64, p *domain.Property, c domain.Constraints) string {
	parts := []string{semanticBand(score)}
	parts = append(parts, constraintFactors(p, c)...)
	return strings.Join(parts, "; ")
}

// explainConstraint builds the explanation for an entry ranked without AI
// scoring.
func explainConstraint(p *domain.Property, c domain.Constraints) string {
	parts := []string{"does not yet have AI ranking available"}
	parts = append(parts, constraintFactors(p, c)...)
	return strings.Join(parts, "; ")
}

func semanticBand(score float64) string {
	switch {
	case score >= 85:
		return "very strong semantic match to your description"
	case score >= 70:
		return "strong semantic match to your description"
	case score >= 50:
		return "moderate semantic similarity to your description"
	default:
		return "low semantic similarity to your description"
	}
}

func constraintFactors(p *domain.Property, c domain.Constraints) []string {
	var parts []string

	switch fit := priceFit(p.Price, c); {
	case fit >= 0.9:
		parts = append(parts, "price right at your budget midpoint")
	case fit >= 0.5:
		parts = append(parts, "price fits your budget")
	}
	if locationMatches(p, c) {
		parts = append(parts, "located in your requested area")
	}
	if c.Type != "" && p.Type == c.Type {
		parts = append(parts, "property type matches your request")
	}

	return parts
}
