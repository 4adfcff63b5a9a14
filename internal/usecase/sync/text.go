package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/casavia/matchengine/internal/domain"
)

// BuildPropertyText deterministically concatenates the semantically relevant
// fields of a property into one canonical string. Identical entity state
// always yields an identical string: no timestamps, no view counters, no
// map-order dependence. The content hash is computed over this text, so
// mutations of unrelated fields never trigger re-embedding.
func BuildPropertyText(p *domain.Property) string {
	var b strings.Builder

	b.WriteString(string(p.Type))
	b.WriteString(" for ")
	b.WriteString(string(p.Intent))
	b.WriteString(". ")
	b.WriteString(priceBand(p.Price))
	b.WriteString(". ")

	if p.Bedrooms > 0 {
		fmt.Fprintf(&b, "%d bedrooms. ", p.Bedrooms)
	}
	if p.Bathrooms > 0 {
		fmt.Fprintf(&b, "%d bathrooms. ", p.Bathrooms)
	}
	if p.AreaSqm > 0 {
		fmt.Fprintf(&b, "%.0f square meters. ", p.AreaSqm)
	}

	writeLocation(&b, p.District, p.City)

	if desc := strings.TrimSpace(p.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString(" ")
	}
	if len(p.Features) > 0 {
		b.WriteString("Features: ")
		b.WriteString(strings.Join(p.Features, ", "))
		b.WriteString(".")
	}

	return strings.TrimSpace(b.String())
}

// BuildDemandText deterministically concatenates the want-criteria of a
// demand post into one canonical string.
func BuildDemandText(d *domain.DemandPost) string {
	var b strings.Builder

	b.WriteString("looking for ")
	if d.Type != "" {
		b.WriteString(string(d.Type))
	} else {
		b.WriteString("property")
	}
	b.WriteString(" to ")
	b.WriteString(string(d.Intent))
	b.WriteString(". ")
	b.WriteString(budgetBand(d.BudgetMin, d.BudgetMax))
	b.WriteString(". ")

	writeLocation(&b, d.District, d.City)

	if d.Urgency != "" {
		fmt.Fprintf(&b, "%s urgency. ", d.Urgency)
	}
	if desc := strings.TrimSpace(d.Description); desc != "" {
		b.WriteString(desc)
	}

	return strings.TrimSpace(b.String())
}

// ContentHash hashes canonical searchable text for staleness detection.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func writeLocation(b *strings.Builder, district, city string) {
	if district == "" && city == "" {
		return
	}
	b.WriteString("located in ")
	if district != "" {
		b.WriteString(district)
		if city != "" {
			b.WriteString(", ")
		}
	}
	if city != "" {
		b.WriteString(city)
	}
	b.WriteString(". ")
}

// priceBand describes a price in words so that small price edits within the
// same band do not invalidate the embedding.
func priceBand(price float64) string {
	switch {
	case price <= 0:
		return "price unspecified"
	case price < 1_000_000:
		return "entry price range"
	case price < 3_000_000:
		return "mid price range"
	case price < 8_000_000:
		return "upper price range"
	default:
		return "luxury price range"
	}
}

func budgetBand(minBudget, maxBudget float64) string {
	mid := domain.Constraints{BudgetMin: minBudget, BudgetMax: maxBudget}.BudgetMidpoint()
	if mid <= 0 {
		return "budget unspecified"
	}
	return "budget in the " + strings.TrimSuffix(priceBand(mid), " range") + " range"
}
