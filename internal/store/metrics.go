package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ruletree/ruletree/pkg/metrics"
)

// WithMetrics wraps a store so every operation records its duration
// and status.
func WithMetrics(s Store, m *metrics.StoreMetrics) Store {
	return &instrumentedStore{next: s, metrics: m}
}

type instrumentedStore struct {
	next    Store
	metrics *metrics.StoreMetrics
}

// opStatusErr filters expected outcomes so lookup misses and name
// clashes don't count as store failures.
func opStatusErr(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

func (s *instrumentedStore) Create(ctx context.Context, rs *RuleSet) error {
	timer := s.metrics.NewOpTimer("create")
	err := s.next.Create(ctx, rs)
	timer.Done(opStatusErr(err))
	return err
}

func (s *instrumentedStore) Get(ctx context.Context, id uuid.UUID) (*RuleSet, error) {
	timer := s.metrics.NewOpTimer("get")
	rs, err := s.next.Get(ctx, id)
	timer.Done(opStatusErr(err))
	return rs, err
}

func (s *instrumentedStore) GetByName(ctx context.Context, name string) (*RuleSet, error) {
	timer := s.metrics.NewOpTimer("get_by_name")
	rs, err := s.next.GetByName(ctx, name)
	timer.Done(opStatusErr(err))
	return rs, err
}

func (s *instrumentedStore) List(ctx context.Context, opts ListOptions) ([]*RuleSet, error) {
	timer := s.metrics.NewOpTimer("list")
	sets, err := s.next.List(ctx, opts)
	timer.Done(err)
	return sets, err
}

func (s *instrumentedStore) Update(ctx context.Context, rs *RuleSet) error {
	timer := s.metrics.NewOpTimer("update")
	err := s.next.Update(ctx, rs)
	timer.Done(opStatusErr(err))
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, id uuid.UUID) error {
	timer := s.metrics.NewOpTimer("delete")
	err := s.next.Delete(ctx, id)
	timer.Done(opStatusErr(err))
	return err
}

func (s *instrumentedStore) PurgeDisabled(ctx context.Context, cutoff time.Time) (int, error) {
	timer := s.metrics.NewOpTimer("purge_disabled")
	n, err := s.next.PurgeDisabled(ctx, cutoff)
	timer.Done(err)
	return n, err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	timer := s.metrics.NewOpTimer("ping")
	err := s.next.Ping(ctx)
	timer.Done(err)
	return err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
