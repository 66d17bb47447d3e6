package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruletree/ruletree/internal/cache"
	"github.com/ruletree/ruletree/internal/schema"
	"github.com/ruletree/ruletree/internal/store"
	"github.com/ruletree/ruletree/internal/target"
	"github.com/ruletree/ruletree/internal/tree"
	"github.com/ruletree/ruletree/pkg/logging"
	"github.com/ruletree/ruletree/pkg/metrics"
)

func testDocument() json.RawMessage {
	return json.RawMessage(`{
		"id": "root", "type": "group",
		"properties": {"conjunction": "AND"},
		"children1": [
			{"id": "r1", "type": "rule",
			 "properties": {"field": "AGE", "fieldSrc": "field", "operator": "equal",
			                "value": [30], "valueSrc": ["value"], "valueType": ["number"]}}
		]
	}`)
}

func unknownFieldDocument() json.RawMessage {
	return json.RawMessage(`{
		"id": "root", "type": "group",
		"properties": {"conjunction": "AND"},
		"children1": [
			{"id": "r1", "type": "rule",
			 "properties": {"field": "mystery", "fieldSrc": "field", "operator": "equal",
			                "value": [1], "valueSrc": ["value"], "valueType": ["number"]}}
		]
	}`)
}

func testOptions() target.Options {
	return target.Options{Schema: schema.MustNew(
		schema.Field{Name: "AGE", Type: tree.TypeNumber},
		schema.Field{Name: "name", Type: tree.TypeText},
	)}
}

func newTestMetrics() *metrics.Registry {
	return metrics.NewRegistry(metrics.Config{
		Namespace:        "ruletree",
		HistogramBuckets: metrics.DefaultHistogramBuckets(),
	})
}

func newTestHandlers(t *testing.T) (*Handlers, *store.MemoryStore, *cache.MemoryCache) {
	t.Helper()

	st := store.NewMemoryStore()
	ca := cache.NewMemoryCache(cache.Config{DefaultTTL: time.Minute})
	t.Cleanup(func() { ca.Close() })

	h, err := NewHandlers(st, ca, testOptions(), logging.Nop(), newTestMetrics())
	require.NoError(t, err)
	return h, st, ca
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, cfg.Queues)
	assert.Equal(t, 30*24*time.Hour, cfg.PurgeRetention)
	assert.Equal(t, "@daily", cfg.PurgeSchedule)
}

func TestNewCompileRuleSetTask(t *testing.T) {
	id := uuid.New()
	task, err := NewCompileRuleSetTask(id)
	require.NoError(t, err)

	assert.Equal(t, TypeCompileRuleSet, task.Type())

	var p CompileRuleSetPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, id, p.RuleSetID)
}

func TestNewCompileBatchTask(t *testing.T) {
	task, err := NewCompileBatchTask(CompileBatchPayload{
		Document:      testDocument(),
		Target:        target.SQL,
		Parameterized: true,
	})
	require.NoError(t, err)

	assert.Equal(t, TypeCompileBatch, task.Type())

	var p CompileBatchPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, target.SQL, p.Target)
	assert.True(t, p.Parameterized)
	assert.JSONEq(t, string(testDocument()), string(p.Document))
}

func TestNewPurgeRuleSetsTask(t *testing.T) {
	task, err := NewPurgeRuleSetsTask(24 * time.Hour)
	require.NoError(t, err)

	assert.Equal(t, TypePurgeRuleSets, task.Type())

	var p PurgeRuleSetsPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, 24*time.Hour, p.OlderThan)
}

func TestHandleCompileRuleSet_WarmsCache(t *testing.T) {
	h, st, ca := newTestHandlers(t)
	ctx := context.Background()

	rs := &store.RuleSet{Name: "warm-me", Document: testDocument()}
	require.NoError(t, st.Create(ctx, rs))

	task, err := NewCompileRuleSetTask(rs.ID)
	require.NoError(t, err)
	require.NoError(t, h.HandleCompileRuleSet(ctx, task))

	root, err := tree.DecodeTree(rs.Document)
	require.NoError(t, err)
	fp, err := tree.Fingerprint(root)
	require.NoError(t, err)
	digest, err := cache.OptionsDigest(testOptions().CacheKeyOptions())
	require.NoError(t, err)

	for _, name := range target.Names() {
		var res target.Result
		err := ca.GetJSON(ctx, cache.CompileKey(name, fp, digest), &res)
		require.NoError(t, err, "target %s should be warmed", name)
		assert.Equal(t, name, res.Target)
	}

	var sql target.Result
	require.NoError(t, ca.GetJSON(ctx, cache.CompileKey(target.SQL, fp, digest), &sql))
	assert.Equal(t, "AGE = 30", sql.Expression)
}

func TestHandleCompileRuleSet_MissingRuleSet(t *testing.T) {
	h, _, ca := newTestHandlers(t)

	task, err := NewCompileRuleSetTask(uuid.New())
	require.NoError(t, err)

	// A rule set deleted before the warm runs is not a failure.
	assert.NoError(t, h.HandleCompileRuleSet(context.Background(), task))
	assert.Equal(t, 0, ca.Len())
}

func TestHandleCompileRuleSet_SkipsDisabled(t *testing.T) {
	h, st, ca := newTestHandlers(t)
	ctx := context.Background()

	rs := &store.RuleSet{Name: "disabled", Document: testDocument(), Disabled: true}
	require.NoError(t, st.Create(ctx, rs))

	task, err := NewCompileRuleSetTask(rs.ID)
	require.NoError(t, err)
	assert.NoError(t, h.HandleCompileRuleSet(ctx, task))
	assert.Equal(t, 0, ca.Len())
}

func TestHandleCompileRuleSet_BadPayload(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	task := asynq.NewTask(TypeCompileRuleSet, []byte("{"))
	err := h.HandleCompileRuleSet(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCompileRuleSet_InvalidDocument(t *testing.T) {
	h, st, _ := newTestHandlers(t)
	ctx := context.Background()

	rs := &store.RuleSet{Name: "bad-doc", Document: unknownFieldDocument()}
	require.NoError(t, st.Create(ctx, rs))

	task, err := NewCompileRuleSetTask(rs.ID)
	require.NoError(t, err)

	// An invalid stored document will not become valid on retry.
	err = h.HandleCompileRuleSet(ctx, task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRunCompileBatch(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	doc := json.RawMessage(`{"rules": [` + string(testDocument()) + `,` + string(unknownFieldDocument()) + `]}`)
	result, err := h.runCompileBatch(context.Background(), CompileBatchPayload{
		Document: doc,
		Target:   target.SQL,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Valid)
	assert.Equal(t, 1, result.Invalid)
	assert.Equal(t, 1, result.Compiled)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "rules[1]")
	assert.False(t, result.CompletedAt.IsZero())
}

func TestRunCompileBatch_UnknownTarget(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	_, err := h.runCompileBatch(context.Background(), CompileBatchPayload{
		Document: testDocument(),
		Target:   "graphql",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCompileBatch_BadDocument(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	task := asynq.NewTask(TypeCompileBatch, []byte(`{"document": "notatree", "target": "sql"}`))
	err := h.HandleCompileBatch(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlePurgeRuleSets(t *testing.T) {
	h, st, _ := newTestHandlers(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	stale := &store.RuleSet{
		Name: "stale", Document: testDocument(),
		Disabled: true, CreatedAt: old, UpdatedAt: old,
	}
	require.NoError(t, st.Create(ctx, stale))
	fresh := &store.RuleSet{Name: "fresh", Document: testDocument(), Disabled: true}
	require.NoError(t, st.Create(ctx, fresh))

	task, err := NewPurgeRuleSetsTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.HandlePurgeRuleSets(ctx, task))

	_, err = st.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestHandlePurgeRuleSets_NonPositiveRetention(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	task := asynq.NewTask(TypePurgeRuleSets, []byte(`{"older_than": 0}`))
	err := h.HandlePurgeRuleSets(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewManager(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	m, err := NewManager(DefaultConfig(), h, logging.Nop(), newTestMetrics())
	require.NoError(t, err)

	assert.False(t, m.IsRunning())
	for _, taskType := range []string{TypeCompileRuleSet, TypeCompileBatch, TypePurgeRuleSets} {
		_, pattern := m.mux.Handler(asynq.NewTask(taskType, nil))
		assert.Equal(t, taskType, pattern)
	}
}

func TestNewManager_RequiresHandlers(t *testing.T) {
	_, err := NewManager(DefaultConfig(), nil, logging.Nop(), newTestMetrics())
	require.Error(t, err)
}

func TestConfigRedisOpt(t *testing.T) {
	cfg := Config{RedisAddr: "queue:6380", RedisPassword: "hush", RedisDB: 2}
	opt, err := cfg.redisOpt()
	require.NoError(t, err)
	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	assert.Equal(t, "queue:6380", client.Addr)
	assert.Equal(t, "hush", client.Password)
	assert.Equal(t, 2, client.DB)

	cfg.RedisURI = "redis://queue:6381/3"
	opt, err = cfg.redisOpt()
	require.NoError(t, err)
	client, ok = opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	assert.Equal(t, "queue:6381", client.Addr)
	assert.Equal(t, 3, client.DB)

	cfg.RedisURI = "::bad::"
	_, err = cfg.redisOpt()
	require.Error(t, err)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(0, nil, nil))
	assert.Equal(t, 2*time.Second, retryDelay(1, nil, nil))
	assert.Equal(t, 8*time.Second, retryDelay(3, nil, nil))
	assert.Equal(t, 10*time.Minute, retryDelay(30, nil, nil))
}

func TestInstrument(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	reg := newTestMetrics()
	m, err := NewManager(DefaultConfig(), h, logging.Nop(), reg)
	require.NoError(t, err)

	called := false
	ok := m.instrument(asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		called = true
		return nil
	}))
	require.NoError(t, ok.ProcessTask(context.Background(), asynq.NewTask(TypeCompileBatch, nil)))
	assert.True(t, called)

	wantErr := errors.New("boom")
	failing := m.instrument(asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		return wantErr
	}))
	err = failing.ProcessTask(context.Background(), asynq.NewTask(TypeCompileBatch, nil))
	assert.ErrorIs(t, err, wantErr)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `ruletree_jobs_processed_total{task="compile:batch"} 2`)
	assert.Contains(t, body, `ruletree_jobs_failed_total{task="compile:batch"} 1`)
}
