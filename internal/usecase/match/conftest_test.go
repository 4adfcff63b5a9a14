package match

import (
	"context"

	"github.com/casavia/matchengine/internal/domain"
)

type fakeDemandReader struct {
	demands map[string]domain.DemandPost
}

func (f *fakeDemandReader) GetByID(_ context.Context, id string) (domain.DemandPost, error) {
	d, ok := f.demands[id]
	if !ok {
		return domain.DemandPost{}, domain.ErrDemandNotFound
	}
	return d, nil
}

type fakePropertyLister struct {
	props []domain.Property
	err   error
	limit int
}

func (f *fakePropertyLister) ListActive(_ context.Context, c domain.Constraints, limit int) ([]domain.Property, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.limit = limit

	// Mirrors the repository's hard filtering so scenarios behave like the
	// real candidate query.
	var out []domain.Property
	for _, p := range f.props {
		if !p.IsActive() {
			continue
		}
		if c.Intent != "" && p.Intent != c.Intent {
			continue
		}
		if c.Type != "" && p.Type != c.Type {
			continue
		}
		if c.City != "" && p.City != c.City {
			continue
		}
		if c.District != "" && p.District != c.District {
			continue
		}
		if c.BudgetMin > 0 && p.Price < c.BudgetMin {
			continue
		}
		if c.BudgetMax > 0 && p.Price > c.BudgetMax {
			continue
		}
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeEmbeddingReader struct {
	embs map[string]domain.Embedding
	err  error
}

func (f *fakeEmbeddingReader) GetBatch(_ context.Context, _ domain.OwnerType, ids []string) (map[string]domain.Embedding, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.Embedding, len(ids))
	for _, id := range ids {
		if e, ok := f.embs[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

// fakeSyncer returns a fixed demand vector and validates property vectors the
// way the real synchronizer does, minus the hash check.
type fakeSyncer struct {
	demandVec  []float32
	demandErr  error
	forceCalls int
	calls      int
}

func (f *fakeSyncer) DemandVector(_ context.Context, _ *domain.DemandPost, force bool) ([]float32, error) {
	f.calls++
	if force {
		f.forceCalls++
	}
	if f.demandErr != nil {
		return nil, f.demandErr
	}
	return f.demandVec, nil
}

func (f *fakeSyncer) CurrentPropertyVector(_ *domain.Property, e *domain.Embedding) ([]float32, bool) {
	if e == nil || len(e.Vector) == 0 {
		return nil, false
	}
	vec, err := domain.DecodeVector(e.Vector)
	if err != nil {
		return nil, false
	}
	return vec, true
}

type fakeMatchStore struct {
	byDemand map[string][]domain.Match
	err      error
	replaces int
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{byDemand: make(map[string][]domain.Match)}
}

func (f *fakeMatchStore) ReplaceForDemand(_ context.Context, demandID string, records []domain.Match) error {
	f.replaces++
	if f.err != nil {
		return f.err
	}
	f.byDemand[demandID] = records
	return nil
}
