package handlers_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/ruletree/ruletree/internal/api/handlers"
	apitesting "github.com/ruletree/ruletree/internal/api/testing"
	"github.com/ruletree/ruletree/internal/cache"
	"github.com/ruletree/ruletree/internal/schema"
	"github.com/ruletree/ruletree/internal/store"
	"github.com/ruletree/ruletree/internal/target"
	"github.com/ruletree/ruletree/internal/tree"
	"github.com/ruletree/ruletree/pkg/logging"
	"github.com/ruletree/ruletree/pkg/metrics"
)

// ageRuleDoc is a single-rule document; as sql it renders AGE = 30.
const ageRuleDoc = `{
	"id": "root", "type": "group",
	"properties": {"conjunction": "AND"},
	"children1": [
		{"id": "r1", "type": "rule",
		 "properties": {"field": "AGE", "operator": "equal",
		                "value": [30], "valueSrc": ["value"], "valueType": ["number"]}}
	]
}`

// nestedDoc pairs the age rule with a negated rule inside an OR group.
const nestedDoc = `{
	"id": "root", "type": "group",
	"properties": {"conjunction": "AND"},
	"children1": [
		{"id": "r1", "type": "rule",
		 "properties": {"field": "AGE", "operator": "equal",
		                "value": [30], "valueSrc": ["value"], "valueType": ["number"]}},
		{"id": "g1", "type": "group",
		 "properties": {"conjunction": "OR"},
		 "children1": [
			{"id": "r2", "type": "rule",
			 "properties": {"field": "name", "operator": "like",
			                "value": ["Den"], "valueSrc": ["value"], "valueType": ["text"]}},
			{"id": "r3", "type": "rule",
			 "properties": {"not": true, "field": "is_promoted", "operator": "equal",
			                "value": [true], "valueSrc": ["value"], "valueType": ["boolean"]}}
		 ]}
	]
}`

// unknownFieldDoc names a field outside the test schema.
const unknownFieldDoc = `{
	"id": "u-root", "type": "group",
	"properties": {"conjunction": "AND"},
	"children1": [
		{"id": "u1", "type": "rule",
		 "properties": {"field": "salary", "operator": "equal",
		                "value": [10], "valueSrc": ["value"], "valueType": ["number"]}}
	]
}`

// fakeJobs records warm enqueues without a queue behind it.
type fakeJobs struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
	err      error
}

func (f *fakeJobs) EnqueueCompileRuleSet(ctx context.Context, id uuid.UUID) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.enqueued = append(f.enqueued, id)
	return &asynq.TaskInfo{ID: id.String()}, nil
}

func (f *fakeJobs) Ping() error { return nil }

func (f *fakeJobs) ids() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.enqueued...)
}

type testEnv struct {
	ts    *apitesting.TestServer
	store *store.MemoryStore
	cache *cache.MemoryCache
	jobs  *fakeJobs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	ca := cache.NewMemoryCache(cache.Config{})
	t.Cleanup(func() { ca.Close() })
	jobs := &fakeJobs{}

	sc := schema.MustNew(
		schema.Field{Name: "AGE", Type: tree.TypeNumber},
		schema.Field{Name: "name", Type: tree.TypeText},
		schema.Field{Name: "is_promoted", Type: tree.TypeBoolean},
	)

	h, err := handlers.New(handlers.Config{
		Store:   st,
		Cache:   ca,
		Jobs:    jobs,
		Options: target.Options{Schema: sc},
		Logger:  logging.Nop(),
		Metrics: metrics.NewRegistry(metrics.Config{}),
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Post("/validate", h.ValidateDocument)
	r.Post("/compile", h.CompileDocument)
	r.Post("/evaluate", h.EvaluateDocument)
	r.Route("/rulesets", func(r chi.Router) {
		r.Post("/", h.CreateRuleSet)
		r.Get("/", h.ListRuleSets)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetRuleSet)
			r.Put("/", h.UpdateRuleSet)
			r.Delete("/", h.DeleteRuleSet)
			r.Post("/compile", h.CompileRuleSet)
		})
	})

	return &testEnv{
		ts:    apitesting.NewTestServer(t, r),
		store: st,
		cache: ca,
		jobs:  jobs,
	}
}
