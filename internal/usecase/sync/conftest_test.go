package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/casavia/matchengine/internal/domain"
)

type fakePropertyReader struct {
	props map[string]domain.Property
	err   error
}

func (f *fakePropertyReader) GetByID(_ context.Context, id string) (domain.Property, error) {
	if f.err != nil {
		return domain.Property{}, f.err
	}
	p, ok := f.props[id]
	if !ok {
		return domain.Property{}, domain.ErrPropertyNotFound
	}
	return p, nil
}

type fakeDemandReader struct {
	demands map[string]domain.DemandPost
	err     error
}

func (f *fakeDemandReader) GetByID(_ context.Context, id string) (domain.DemandPost, error) {
	if f.err != nil {
		return domain.DemandPost{}, f.err
	}
	d, ok := f.demands[id]
	if !ok {
		return domain.DemandPost{}, domain.ErrDemandNotFound
	}
	return d, nil
}

type fakeEmbeddingStore struct {
	records   map[string]domain.Embedding
	getErr    error
	upsertErr error
	deletes   int
}

func newFakeEmbeddingStore() *fakeEmbeddingStore {
	return &fakeEmbeddingStore{records: make(map[string]domain.Embedding)}
}

func storeKey(owner domain.OwnerType, id string) string {
	return fmt.Sprintf("%s/%s", owner, id)
}

func (f *fakeEmbeddingStore) Get(_ context.Context, owner domain.OwnerType, id string) (domain.Embedding, error) {
	if f.getErr != nil {
		return domain.Embedding{}, f.getErr
	}
	e, ok := f.records[storeKey(owner, id)]
	if !ok {
		return domain.Embedding{}, domain.ErrNotFound
	}
	return e, nil
}

func (f *fakeEmbeddingStore) Upsert(_ context.Context, e *domain.Embedding) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.records[storeKey(e.OwnerType, e.OwnerID)] = *e
	return nil
}

func (f *fakeEmbeddingStore) Delete(_ context.Context, owner domain.OwnerType, id string) error {
	f.deletes++
	delete(f.records, storeKey(owner, id))
	return nil
}

type fakeEmbedder struct {
	calls  int
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vector, PromptTokens: 10, TotalTokens: 10}, nil
}

func testService(props *fakePropertyReader, demands *fakeDemandReader, store *fakeEmbeddingStore, embed *fakeEmbedder, dims int) *Service {
	if props == nil {
		props = &fakePropertyReader{}
	}
	if demands == nil {
		demands = &fakeDemandReader{}
	}
	return New(props, demands, store, embed, "test-model", dims, zap.NewNop())
}
