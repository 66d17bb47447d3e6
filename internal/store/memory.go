package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with an in-process map. Reads and writes
// deep-copy rule sets so callers can never mutate stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	sets   map[uuid.UUID]*RuleSet
	byName map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets:   make(map[uuid.UUID]*RuleSet),
		byName: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(ctx context.Context, rs *RuleSet) error {
	prepareForCreate(rs)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[rs.Name]; taken {
		return ErrDuplicate
	}
	if _, exists := s.sets[rs.ID]; exists {
		return ErrDuplicate
	}

	s.sets[rs.ID] = cloneRuleSet(rs)
	s.byName[rs.Name] = rs.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, ok := s.sets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRuleSet(rs), nil
}

func (s *MemoryStore) GetByName(ctx context.Context, name string) (*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRuleSet(s.sets[id]), nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*RuleSet, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}

	s.mu.RLock()
	all := make([]*RuleSet, 0, len(s.sets))
	for _, rs := range s.sets {
		if rs.Disabled && !opts.IncludeDisabled {
			continue
		}
		all = append(all, rs)
	}
	s.mu.RUnlock()

	// Newest first, id as tie-break for a stable order.
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return strings.Compare(all[i].ID.String(), all[j].ID.String()) < 0
	})

	if opts.Offset >= len(all) {
		return nil, nil
	}
	all = all[opts.Offset:]
	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}

	out := make([]*RuleSet, len(all))
	for i, rs := range all {
		out[i] = cloneRuleSet(rs)
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, rs *RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sets[rs.ID]
	if !ok {
		return ErrNotFound
	}

	if other, taken := s.byName[rs.Name]; taken && other != rs.ID {
		return ErrDuplicate
	}

	rs.UpdatedAt = time.Now().UTC()
	rs.CreatedAt = current.CreatedAt

	delete(s.byName, current.Name)
	s.sets[rs.ID] = cloneRuleSet(rs)
	s.byName[rs.Name] = rs.ID
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.sets[id]
	if !ok {
		return ErrNotFound
	}

	delete(s.byName, rs.Name)
	delete(s.sets, id)
	return nil
}

func (s *MemoryStore) PurgeDisabled(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, rs := range s.sets {
		if rs.Disabled && rs.UpdatedAt.Before(cutoff) {
			delete(s.byName, rs.Name)
			delete(s.sets, id)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneRuleSet(rs *RuleSet) *RuleSet {
	clone := *rs
	if rs.Document != nil {
		clone.Document = make([]byte, len(rs.Document))
		copy(clone.Document, rs.Document)
	}
	return &clone
}
