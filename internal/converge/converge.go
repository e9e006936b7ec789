package converge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/dnsfailover/internal/domain"
	"github.com/hamed0406/dnsfailover/internal/metrics"
	"github.com/hamed0406/dnsfailover/internal/provider"
	"github.com/hamed0406/dnsfailover/internal/retry"
)

// Change is one desired-state mutation: point ref at Value.
type Change struct {
	PolicyID string
	Ref      domain.RecordRef
	Value    string
}

// Mutator makes the provider's record match a decided value. Each
// (zone, record) has its own lock so policies can never race on one record
// while unrelated records converge in parallel; an idempotency cache keeps
// repeated identical decisions from burning API calls.
type Mutator struct {
	Logger   *zap.Logger
	Provider provider.Provider
	Retry    retry.Policy
	Verifier *Verifier // optional, log-only

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	applied map[string]string // record key -> last value written
}

func NewMutator(logger *zap.Logger, p provider.Provider, pol retry.Policy) *Mutator {
	return &Mutator{
		Logger:   logger,
		Provider: p,
		Retry:    pol,
		locks:    make(map[string]*sync.Mutex),
		applied:  make(map[string]string),
	}
}

func (m *Mutator) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Invalidate drops the cached last-applied value so the next Apply re-reads
// the provider. Used by force_reconverge after manual edits.
func (m *Mutator) Invalidate(ref domain.RecordRef) {
	m.mu.Lock()
	delete(m.applied, ref.Key())
	m.mu.Unlock()
}

// Apply converges one record. Transient provider errors are retried with
// exponential backoff; permanent failures come back as an error with the
// engine's state left alone. The divergence heals on the next successful
// convergence.
func (m *Mutator) Apply(ctx context.Context, ch Change) error {
	key := ch.Ref.Key()
	lock := m.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	last, cached := m.applied[key]
	m.mu.Unlock()
	if cached && last == ch.Value {
		m.Logger.Debug("converge_noop", zap.String("record", key), zap.String("value", ch.Value))
		return nil
	}

	if !cached {
		if rec, err := m.Provider.GetRecord(ctx, ch.Ref); err == nil && rec.Content == ch.Value {
			m.remember(key, ch.Value)
			m.Logger.Debug("converge_already_correct", zap.String("record", key))
			return nil
		}
		// A failed read is not fatal; the update below is idempotent anyway.
	}

	err := m.Retry.Do(ctx, func(ctx context.Context) error {
		metrics.ConvergeAttempts.Inc()
		return m.Provider.UpdateRecord(ctx, ch.Ref, ch.Value)
	}, func(err error) bool {
		return !provider.IsPermanent(err)
	})
	if err != nil {
		metrics.ConvergeFailures.Inc()
		m.Logger.Error("converge_failed",
			zap.String("policy", ch.PolicyID),
			zap.String("record", key),
			zap.String("value", ch.Value),
			zap.Error(err),
		)
		return fmt.Errorf("converge %s -> %s: %w", key, ch.Value, err)
	}

	m.remember(key, ch.Value)
	m.Logger.Info("converge_applied",
		zap.String("policy", ch.PolicyID),
		zap.String("record", key),
		zap.String("value", ch.Value),
	)

	if m.Verifier != nil {
		m.Verifier.Verify(ctx, ch.Ref, ch.Value)
	}
	return nil
}

func (m *Mutator) remember(key, value string) {
	m.mu.Lock()
	m.applied[key] = value
	m.mu.Unlock()
}
