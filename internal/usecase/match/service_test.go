package match

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/casavia/matchengine/internal/domain"
)

func testDemand() domain.DemandPost {
	return domain.DemandPost{
		ID:          "d1",
		UserID:      "u1",
		Status:      domain.DemandActive,
		Type:        domain.TypeCondo,
		Intent:      domain.IntentBuy,
		BudgetMin:   2_000_000,
		BudgetMax:   3_000_000,
		City:        "Lisbon",
		Description: "Quiet condo near a park for a family of four.",
	}
}

func activeCondo(id string, price float64, city string) domain.Property {
	return domain.Property{
		ID:     id,
		Status: domain.PropertyActive,
		Type:   domain.TypeCondo,
		Intent: domain.IntentSale,
		Price:  price,
		City:   city,
	}
}

func newTestService(
	demands *fakeDemandReader, props *fakePropertyLister,
	embs *fakeEmbeddingReader, syncer *fakeSyncer, store *fakeMatchStore,
) *Service {
	return New(demands, props, embs, syncer, store, zap.NewNop())
}

// A semantically similar embedded property becomes a match, an unembedded one
// in budget becomes a recommendation, and a property failing hard constraints
// never appears at all.
func TestComputeMatches_Classification(t *testing.T) {
	d := testDemand()

	embedded := activeCondo("p-embedded", 2_500_000, "Lisbon")
	unembedded := activeCondo("p-unembedded", 2_500_000, "Lisbon")
	wrongCity := activeCondo("p-porto", 2_500_000, "Porto")

	demandVec := []float32{1, 0, 0}
	// cosine 0.64 against the demand vector: similarity score near 82.
	propVec := []float32{0.64, 0.7684, 0}

	demands := &fakeDemandReader{demands: map[string]domain.DemandPost{d.ID: d}}
	props := &fakePropertyLister{props: []domain.Property{embedded, unembedded, wrongCity}}
	embs := &fakeEmbeddingReader{embs: map[string]domain.Embedding{
		embedded.ID: {OwnerType: domain.OwnerProperty, OwnerID: embedded.ID, Vector: domain.EncodeVector(propVec)},
	}}
	syncer := &fakeSyncer{demandVec: demandVec}
	store := newFakeMatchStore()

	svc := newTestService(demands, props, embs, syncer, store)

	result, err := svc.ComputeMatches(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Fatal("result should not be degraded")
	}

	if len(result.Matches) != 1 || result.Matches[0].Property.ID != embedded.ID {
		t.Fatalf("matches = %+v, want exactly p-embedded", result.Matches)
	}
	m := result.Matches[0]
	if m.Score < 80 || m.Score > 84 {
		t.Fatalf("semantic score = %v, want near 82", m.Score)
	}
	if !m.Semantic || m.Kind != domain.KindMatch {
		t.Fatalf("match entry = %+v, want semantic match", m)
	}

	if len(result.Recommendations) != 1 || result.Recommendations[0].Property.ID != unembedded.ID {
		t.Fatalf("recommendations = %+v, want exactly p-unembedded", result.Recommendations)
	}
	r := result.Recommendations[0]
	if r.Kind != domain.KindRecommendation || r.Semantic {
		t.Fatalf("recommendation entry = %+v, want non-semantic recommendation", r)
	}
	if !strings.Contains(r.Explanation, "does not yet have AI ranking available") {
		t.Fatalf("recommendation explanation = %q", r.Explanation)
	}

	for _, entry := range append(result.Matches, result.Recommendations...) {
		if entry.Property.ID == wrongCity.ID {
			t.Fatal("property outside requested city must be excluded")
		}
	}

	records := store.byDemand[d.ID]
	if len(records) != 2 {
		t.Fatalf("persisted %d records, want 2", len(records))
	}
}

// Provider outage never empties the result. Every in-budget candidate is
// still returned, constraint-ranked, with the degraded flag set.
func TestComputeMatches_ProviderOutageDegrades(t *testing.T) {
	d := testDemand()
	demands := &fakeDemandReader{demands: map[string]domain.DemandPost{d.ID: d}}
	props := &fakePropertyLister{props: []domain.Property{
		activeCondo("p1", 2_500_000, "Lisbon"),
		activeCondo("p2", 2_100_000, "Lisbon"),
	}}
	syncer := &fakeSyncer{demandErr: domain.ErrProviderUnavailable}
	store := newFakeMatchStore()

	svc := newTestService(demands, props, &fakeEmbeddingReader{}, syncer, store)

	result, err := svc.ComputeMatches(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("provider outage must not fail the request: %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded result")
	}
	if len(result.Matches)+len(result.Recommendations) != 2 {
		t.Fatalf("expected both candidates in the result, got %d matches and %d recommendations",
			len(result.Matches), len(result.Recommendations))
	}
	for _, r := range result.Recommendations {
		if r.Semantic {
			t.Fatalf("degraded entry marked semantic: %+v", r)
		}
	}
}

func TestComputeMatches_EmbeddingReadFailureDegrades(t *testing.T) {
	d := testDemand()
	demands := &fakeDemandReader{demands: map[string]domain.DemandPost{d.ID: d}}
	props := &fakePropertyLister{props: []domain.Property{activeCondo("p1", 2_500_000, "Lisbon")}}
	embs := &fakeEmbeddingReader{err: errors.New("batch read failed")}
	syncer := &fakeSyncer{demandVec: []float32{1, 0}}

	svc := newTestService(demands, props, embs, syncer, newFakeMatchStore())

	result, err := svc.ComputeMatches(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded result on embedding read failure")
	}
}

// The maximum constraint-only score stays below the default threshold, so a
// candidate without semantic evidence can never be classified a match.
func TestConstraintScore_NeverReachesThreshold(t *testing.T) {
	d := testDemand()
	d.District = "Alvalade"
	c := d.Constraints()

	perfect := activeCondo("p1", c.BudgetMidpoint(), "Lisbon")
	perfect.District = "Alvalade"

	score := constraintScore(&perfect, c)
	if score >= DefaultThreshold {
		t.Fatalf("constraint score %v reached the threshold %v", score, DefaultThreshold)
	}
	if score != 69 {
		t.Fatalf("perfect constraint fit = %v, want 69", score)
	}
}

func TestComputeMatches_InvalidBudgetRange(t *testing.T) {
	d := testDemand()
	d.BudgetMin = 5_000_000
	d.BudgetMax = 2_000_000
	demands := &fakeDemandReader{demands: map[string]domain.DemandPost{d.ID: d}}

	svc := newTestService(demands, &fakePropertyLister{}, &fakeEmbeddingReader{}, &fakeSyncer{}, newFakeMatchStore())

	_, err := svc.ComputeMatches(context.Background(), d.ID)
	if !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestComputeMatches_DemandNotFound(t *testing.T) {
	svc := newTestService(&fakeDemandReader{}, &fakePropertyLister{}, &fakeEmbeddingReader{}, &fakeSyncer{}, newFakeMatchStore())

	_, err := svc.ComputeMatches(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrDemandNotFound) {
		t.Fatalf("expected ErrDemandNotFound, got %v", err)
	}
}

func TestComputeMatches_CandidateQueryFailure(t *testing.T) {
	d := testDemand()
	demands := &fakeDemandReader{demands: map[string]domain.DemandPost{d.ID: d}}
	props := &fakePropertyLister{err: errors.New("db down")}

	svc := newTestService(demands, props, &fakeEmbeddingReader{}, &fakeSyncer{}, newFakeMatchStore())

	if _, err := svc.ComputeMatches(context.Background(), d.ID); err == nil {
		t.Fatal("expected error when the candidate query fails")
	}
}

// Persistence is audit-only; a write failure must not surface to the caller.
func TestComputeMatches_PersistFailureNonFatal(t *testing.T) {
	d := testDemand()
	demands := &fakeDemandReader{demands: map[string]domain.DemandPost{d.ID: d}}
	props := &fakePropertyLister{props: []domain.Property{activeCondo("p1", 2_500_000, "Lisbon")}}
	store := newFakeMatchStore()
	store.err = errors.New("insert failed")

	svc := newTestService(demands, props, &fakeEmbeddingReader{}, &fakeSyncer{demandVec: []float32{1, 0}}, store)

	result, err := svc.ComputeMatches(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("persistence failure leaked to the caller: %v", err)
	}
	if len(result.Matches)+len(result.Recommendations) == 0 {
		t.Fatal("expected a usable result despite persistence failure")
	}
}

// Refresh forces the demand sync and supersedes prior records: the stored set
// afterwards is exactly the latest computation.
func TestRefreshMatches_ForcesSyncAndSupersedes(t *testing.T) {
	d := testDemand()
	demands := &fakeDemandReader{demands: map[string]domain.DemandPost{d.ID: d}}
	props := &fakePropertyLister{props: []domain.Property{activeCondo("p1", 2_500_000, "Lisbon")}}
	syncer := &fakeSyncer{demandVec: []float32{1, 0}}
	store := newFakeMatchStore()

	svc := newTestService(demands, props, &fakeEmbeddingReader{}, syncer, store)

	if _, err := svc.ComputeMatches(context.Background(), d.ID); err != nil {
		t.Fatalf("compute: %v", err)
	}
	if syncer.forceCalls != 0 {
		t.Fatal("plain compute must not force the sync")
	}

	props.props = nil // listing withdrawn between runs

	result, err := svc.RefreshMatches(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if syncer.forceCalls != 1 {
		t.Fatalf("force calls = %d, want 1", syncer.forceCalls)
	}
	if store.replaces != 2 {
		t.Fatalf("replaces = %d, want 2", store.replaces)
	}
	if got := len(store.byDemand[d.ID]); got != len(result.Matches)+len(result.Recommendations) {
		t.Fatalf("stored %d records, want %d", got, len(result.Matches)+len(result.Recommendations))
	}
	if len(store.byDemand[d.ID]) != 0 {
		t.Fatal("stale records from the first run survived the refresh")
	}
}

func TestPartition_OrderingAndCaps(t *testing.T) {
	now := time.Now()
	mk := func(id string, score float64, age time.Duration) domain.RankedProperty {
		return domain.RankedProperty{
			Property: domain.Property{ID: id, CreatedAt: now.Add(-age)},
			Score:    score,
		}
	}

	svc := (&Service{threshold: 70, maxRecs: 2, maxCands: 10, logger: zap.NewNop()})

	result := svc.partition([]domain.RankedProperty{
		mk("low-old", 50, 48*time.Hour),
		mk("high", 90, time.Hour),
		mk("mid-new", 60, time.Hour),
		mk("mid-old", 60, 24*time.Hour),
		mk("edge", 70, time.Hour),
	})

	if got := ids(result.Matches); !equal(got, []string{"high", "edge"}) {
		t.Fatalf("matches order = %v", got)
	}
	// Equal scores break ties by listing recency; the cap drops the tail.
	if got := ids(result.Recommendations); !equal(got, []string{"mid-new", "mid-old"}) {
		t.Fatalf("recommendations = %v", got)
	}
}

func ids(entries []domain.RankedProperty) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Property.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
