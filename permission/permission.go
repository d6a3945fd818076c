// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package permission is the durable, concurrently-readable façade over
// cando.CanDo. A single writer journals every mutation through a pluggable
// sink.Sink before applying it to the graph; any number of readers traverse
// a lock-free snapshot published only after a successful flush. A sink that
// cannot even undo a failed batch poisons the engine permanently.
package permission

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cando-sh/cando/cando"
	"github.com/cando-sh/cando/sink"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Permission is the journal -> apply -> publish façade described in
// package doc. The zero value is not usable; construct one with New.
type Permission[GranteeId, ActionId comparable] struct {
	sink sink.Sink[GranteeId, ActionId]
	log  *logrus.Entry

	writerMu sync.Mutex
	write    *cando.CanDo[GranteeId, ActionId]

	read atomic.Pointer[cando.CanDo[GranteeId, ActionId]]

	poisoned atomic.Bool

	cache   *checkCache[GranteeId, ActionId]
	metrics *Metrics
}

// Option configures a Permission at construction time.
type Option func(*options)

type options struct {
	logger    *logrus.Entry
	cacheSize int
	metrics   *Metrics
}

// WithLogger overrides the *logrus.Entry Permission logs against. The
// default is logrus.StandardLogger().WithField("component", "permission").
func WithLogger(entry *logrus.Entry) Option {
	return func(o *options) { o.logger = entry }
}

// WithCacheSize overrides the check-result cache's capacity.
func WithCacheSize(size int) Option {
	return func(o *options) { o.cacheSize = size }
}

// WithMetrics attaches a Prometheus instrument set. Without this option,
// Permission records no metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New builds a Permission over sink, replaying every historically flushed
// Change to reconstruct the graph. A not-found error surfaced while
// replaying history is logged at Warn and otherwise ignored, since a
// journal written by an older schema or a concurrently-trimmed graph can
// legitimately reference nodes no longer present.
func New[GranteeId, ActionId comparable](s sink.Sink[GranteeId, ActionId], opts ...Option) (*Permission[GranteeId, ActionId], error) {
	cfg := options{
		logger:    logrus.StandardLogger().WithField("component", "permission"),
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	history, err := s.ReadAll(context.Background())
	if err != nil {
		return nil, fmt.Errorf("permission: read journal history: %w", err)
	}

	write := cando.New[GranteeId, ActionId]()
	for _, change := range history {
		absorbLogged(write, change, cfg.logger)
	}

	p := &Permission[GranteeId, ActionId]{
		sink:    s,
		log:     cfg.logger,
		write:   write,
		cache:   newCheckCache[GranteeId, ActionId](cfg.cacheSize),
		metrics: cfg.metrics,
	}
	p.read.Store(write.Clone())
	return p, nil
}

// absorbLogged applies change to cd the same way cando.CanDo.Absorb does,
// but additionally logs a swallowed not-found error at Warn for the four
// operations that tolerate one. It exists because Absorb's own signature is
// intentionally error-less for those: Change batches tolerate a missing
// endpoint silently, but replaying history at startup is worth surfacing to
// an operator. RemoveGrant keeps Absorb's stricter behavior: a journaled
// RemoveGrant that no longer resolves means the journal is corrupt, so this
// panics exactly like Absorb does for a live batch.
func absorbLogged[G, A comparable](cd *cando.CanDo[G, A], change cando.Change[G, A], log *logrus.Entry) {
	var err error
	switch change.Kind {
	case cando.ChangeClear:
		cd.Clear()
	case cando.ChangeRemoveGrantee:
		err = cd.RemoveGrantee(change.Grantee)
	case cando.ChangeRemoveAction:
		err = cd.RemoveAction(change.Action)
	case cando.ChangeAddGrant:
		cd.AddGrant(change.Grantee, change.Action)
	case cando.ChangeRemoveGrant:
		if rmErr := cd.RemoveGrant(change.Grantee, change.Action); rmErr != nil {
			panic("permission: replay: remove grant for an unknown grantee or action: " + rmErr.Error())
		}
	case cando.ChangeConnectGrantees:
		cd.ConnectGrantees(change.Grantee, change.GranteeOf)
	case cando.ChangeDisconnectGrantees:
		err = cd.DisconnectGrantees(change.Grantee, change.GranteeOf)
	case cando.ChangeConnectActions:
		cd.ConnectActions(change.MainAction, change.SubAction)
	case cando.ChangeDisconnectActions:
		err = cd.DisconnectActions(change.MainAction, change.SubAction)
	case cando.ChangeAddRoot:
		cd.AddRoot(change.Grantee)
	case cando.ChangeRemoveRoot:
		cd.RemoveRoot(change.Grantee)
	}
	if err != nil {
		log.WithError(err).Warn("replayed historical change against a missing node")
	}
}

// Change journals batch to the sink, applies it to the write-side graph,
// and publishes a fresh reader snapshot on success. Changes apply in the
// caller-supplied order. A Write or Flush failure rejects the whole batch
// and leaves the engine healthy, provided Clear succeeds to undo whatever
// was written; a Clear failure poisons the engine permanently.
func (p *Permission[G, A]) Change(ctx context.Context, batch []cando.Change[G, A]) error {
	start := time.Now()

	if p.poisoned.Load() {
		return ErrFailed
	}

	p.writerMu.Lock()
	defer p.writerMu.Unlock()

	if p.poisoned.Load() {
		return ErrFailed
	}

	batchID := uuid.New()
	log := p.log.WithField("batch_id", batchID).WithField("batch_size", len(batch))

	for _, change := range batch {
		if err := p.sink.Write(ctx, change); err != nil {
			return p.rejectBatch(ctx, log, start, len(batch), wrapIoWrite(err))
		}
	}

	if err := p.sink.Flush(ctx); err != nil {
		return p.rejectBatch(ctx, log, start, len(batch), wrapIoFlush(err))
	}

	for _, change := range batch {
		p.write.Absorb(change)
	}
	p.publish()

	log.Debug("change batch accepted")
	p.metrics.observeChange("accepted", len(batch), time.Since(start).Seconds())
	return nil
}

// rejectBatch attempts to undo a batch that failed to write or flush. If
// the sink can't even clear its pending records, the engine poisons itself
// permanently: a sink that can't undo a partial write can no longer be
// trusted to tell truth from garbage.
func (p *Permission[G, A]) rejectBatch(ctx context.Context, log *logrus.Entry, start time.Time, batchSize int, cause error) error {
	if err := p.sink.Clear(ctx); err != nil {
		clearErr := wrapIoClear(err)
		p.poisoned.Store(true)
		p.metrics.setPoisoned(true)
		log.WithError(clearErr).WithField("write_or_flush_cause", cause).Error("sink clear failed after a write/flush failure, engine poisoned")
		p.metrics.observeChange("poisoned", batchSize, time.Since(start).Seconds())
		return fmt.Errorf("%w: %w", ErrFailed, clearErr)
	}
	log.WithError(cause).Warn("change batch rejected, sink cleared, engine still healthy")
	p.metrics.observeChange("rejected", batchSize, time.Since(start).Seconds())
	return cause
}

// publish clones the write-side graph and atomically swaps the reader
// snapshot onto it, then purges the check cache. It must be called with
// writerMu held.
func (p *Permission[G, A]) publish() {
	p.read.Store(p.write.Clone())
	p.cache.purge()
}

// Check reports whether grantee can perform action against the most
// recently published snapshot. It never blocks on a concurrent writer.
func (p *Permission[G, A]) Check(_ context.Context, grantee G, action A) (bool, error) {
	start := time.Now()

	if p.poisoned.Load() {
		return false, ErrFailed
	}

	if cached, ok := p.cache.get(grantee, action); ok {
		p.metrics.observeCheck(time.Since(start).Seconds(), true)
		return cached, nil
	}

	snapshot := p.read.Load()
	result, err := snapshot.CanGranteeDo(grantee, action)
	if err != nil {
		p.metrics.observeCheck(time.Since(start).Seconds(), false)
		return false, fmt.Errorf("permission: check: %w", err)
	}

	p.cache.put(grantee, action, result)
	p.metrics.observeCheck(time.Since(start).Seconds(), false)
	return result, nil
}

// Compact removes every orphaned grantee and action from the write-side
// graph and publishes the result like any other batch. If the underlying
// sink implements sink.Compactor, the journal itself is rewritten to the
// minimal replay log of the residual graph; otherwise the journal keeps
// its full history and only the live graph shrinks.
func (p *Permission[G, A]) Compact(ctx context.Context) error {
	if p.poisoned.Load() {
		return ErrFailed
	}

	p.writerMu.Lock()
	defer p.writerMu.Unlock()

	if p.poisoned.Load() {
		return ErrFailed
	}

	replayLog := p.write.Compact()

	compactor, ok := p.sink.(sink.Compactor[G, A])
	if ok {
		changes := make([]cando.Change[G, A], len(replayLog))
		for i, r := range replayLog {
			changes[i] = r.ToChange()
		}
		if err := compactor.Rewrite(ctx, changes); err != nil {
			p.poisoned.Store(true)
			p.metrics.setPoisoned(true)
			p.log.WithError(err).Error("journal rewrite failed during compaction, engine poisoned")
			return ErrFailed
		}
	}

	rebuilt := cando.New[G, A]()
	if err := cando.ReplayAll(rebuilt, replayLog); err != nil {
		return fmt.Errorf("permission: compact: rebuild graph: %w", err)
	}
	p.write = rebuilt

	p.publish()
	p.log.WithField("replay_entries", len(replayLog)).Debug("compaction published")
	return nil
}

// Poisoned reports whether the engine has entered its permanent failure
// state.
func (p *Permission[G, A]) Poisoned() bool {
	return p.poisoned.Load()
}
