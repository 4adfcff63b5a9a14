package chi

import (
	"context"
	"net/http/httptest"
	"strings"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/casavia/matchengine/internal/cache"
	"github.com/casavia/matchengine/internal/cache/aside"
	"github.com/casavia/matchengine/internal/domain"
	backfilluc "github.com/casavia/matchengine/internal/usecase/backfill"
	healthuc "github.com/casavia/matchengine/internal/usecase/health"
	"github.com/casavia/matchengine/internal/usecase/hooks"
)

type fakeMatcher struct {
	result domain.MatchResult
	err    error
	force  int
	calls  int
}

func (f *fakeMatcher) ComputeMatches(_ context.Context, _ string) (domain.MatchResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeMatcher) RefreshMatches(_ context.Context, _ string) (domain.MatchResult, error) {
	f.calls++
	f.force++
	return f.result, f.err
}

type fakeHistory struct {
	records []domain.Match
	err     error
}

func (f *fakeHistory) ListForDemand(_ context.Context, _ string, _ int) ([]domain.Match, error) {
	return f.records, f.err
}

type fakePropertyReader struct {
	props map[string]domain.Property
	list  []domain.Property
	gets  int
	lists int
	err   error
}

func (f *fakePropertyReader) GetByID(_ context.Context, id string) (domain.Property, error) {
	f.gets++
	if f.err != nil {
		return domain.Property{}, f.err
	}
	p, ok := f.props[id]
	if !ok {
		return domain.Property{}, domain.ErrPropertyNotFound
	}
	return p, nil
}

func (f *fakePropertyReader) ListActive(_ context.Context, _ domain.Constraints, _ int) ([]domain.Property, error) {
	f.lists++
	return f.list, f.err
}

type fakeBackfiller struct {
	result backfilluc.Result
	err    error
}

func (f *fakeBackfiller) Run(_ context.Context) (backfilluc.Result, error) {
	return f.result, f.err
}

type fakeNotifier struct {
	events []hooks.Event
	err    error
}

func (f *fakeNotifier) Notify(e hooks.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memStore) DelPrefix(_ context.Context, prefix string) error {
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type testEnv struct {
	matcher  *fakeMatcher
	history  *fakeHistory
	props    *fakePropertyReader
	backfill *fakeBackfiller
	notifier *fakeNotifier
	store    *memStore
	router   *chirouter.Mux
}

func newTestEnv() *testEnv {
	env := &testEnv{
		matcher:  &fakeMatcher{},
		history:  &fakeHistory{},
		props:    &fakePropertyReader{props: make(map[string]domain.Property)},
		backfill: &fakeBackfiller{},
		notifier: &fakeNotifier{},
		store:    newMemStore(),
	}

	cacheAside := aside.New(env.store, aside.Config{
		KeyPrefix: "test:",
		OpTimeout: 100 * time.Millisecond,
		ShortTTL:  time.Minute,
		MediumTTL: time.Minute,
		LongTTL:   time.Minute,
	}, nil, zap.NewNop())

	health := healthuc.New(okPinger{}, nil, nil)

	server := NewServer(env.matcher, env.history, env.props, env.backfill,
		env.notifier, cacheAside, health, zap.NewNop())

	env.router = chirouter.NewRouter()
	server.Routes(env.router)
	return env
}

func (e *testEnv) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}
