package sync

import (
	"strings"
	"testing"

	"github.com/casavia/matchengine/internal/domain"
)

func sampleProperty() domain.Property {
	return domain.Property{
		ID:          "p1",
		Status:      domain.PropertyActive,
		Type:        domain.TypeCondo,
		Intent:      domain.IntentSale,
		Price:       2_500_000,
		Bedrooms:    3,
		Bathrooms:   2,
		AreaSqm:     120,
		City:        "Lisbon",
		District:    "Alvalade",
		Description: "Bright apartment near the park.",
		Features:    domain.FeatureList{"balcony", "elevator"},
	}
}

func TestBuildPropertyText_Deterministic(t *testing.T) {
	p := sampleProperty()
	first := BuildPropertyText(&p)
	for i := 0; i < 5; i++ {
		if got := BuildPropertyText(&p); got != first {
			t.Fatalf("iteration %d produced different text:\n%s\nvs\n%s", i, got, first)
		}
	}
}

// Non-semantic fields must not leak into the canonical text; otherwise
// view-count bumps or timestamp touches would trigger re-embedding.
func TestBuildPropertyText_IgnoresNonSemanticFields(t *testing.T) {
	a := sampleProperty()
	b := sampleProperty()
	b.ViewCount = 9999

	if BuildPropertyText(&a) != BuildPropertyText(&b) {
		t.Fatal("view count changed canonical text")
	}
	if ContentHash(BuildPropertyText(&a)) != ContentHash(BuildPropertyText(&b)) {
		t.Fatal("view count changed content hash")
	}
}

func TestBuildPropertyText_SemanticChangeChangesHash(t *testing.T) {
	a := sampleProperty()
	b := sampleProperty()
	b.Description = "Needs renovation."

	if ContentHash(BuildPropertyText(&a)) == ContentHash(BuildPropertyText(&b)) {
		t.Fatal("description change did not change content hash")
	}
}

// Small price edits inside a band keep the hash stable; crossing a band
// boundary changes it.
func TestBuildPropertyText_PriceBands(t *testing.T) {
	a := sampleProperty()
	a.Price = 2_400_000
	b := sampleProperty()
	b.Price = 2_600_000
	c := sampleProperty()
	c.Price = 9_000_000

	if BuildPropertyText(&a) != BuildPropertyText(&b) {
		t.Fatal("price edit within band changed canonical text")
	}
	if BuildPropertyText(&a) == BuildPropertyText(&c) {
		t.Fatal("band crossing did not change canonical text")
	}
}

func TestBuildDemandText(t *testing.T) {
	d := domain.DemandPost{
		ID:          "d1",
		Type:        domain.TypeCondo,
		Intent:      domain.IntentBuy,
		BudgetMin:   2_000_000,
		BudgetMax:   3_000_000,
		City:        "Lisbon",
		District:    "Alvalade",
		Urgency:     domain.UrgencyHigh,
		Description: "Family of four, need a quiet street.",
	}

	text := BuildDemandText(&d)
	for _, want := range []string{"looking for condo to buy", "Alvalade, Lisbon", "high urgency", "quiet street"} {
		if !strings.Contains(text, want) {
			t.Errorf("demand text missing %q:\n%s", want, text)
		}
	}
}

func TestBuildDemandText_EmptyType(t *testing.T) {
	d := domain.DemandPost{Intent: domain.IntentRent}
	if got := BuildDemandText(&d); !strings.Contains(got, "looking for property to rent") {
		t.Fatalf("unexpected text for empty type: %s", got)
	}
}
