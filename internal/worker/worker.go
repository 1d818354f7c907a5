// Package worker implements the pipeline worker described in spec.md §4.7:
// a single goroutine that polls the queue on a fixed interval, promotes
// confirmed transactions to their next step, replicates zone/token files,
// and clears rows once their on-chain follow-up is done. It is a direct
// port of registrar.py's RegistrarWorker.run() loop, with the Python
// try/except-per-step replaced by regerrors.Fatal classification and the
// sleep granularity kept at one second so cancelling Run's context is
// observed within that long even against a long poll interval.
package worker

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"synnergy-registrar/internal/chainadapter"
	"synnergy-registrar/internal/issuer"
	"synnergy-registrar/internal/queue"
	"synnergy-registrar/internal/regerrors"
	"synnergy-registrar/internal/replicator"
	"synnergy-registrar/internal/walletcache"
)

const (
	minBackoff = 1 * time.Second
	maxBackoff = 2 * time.Minute
)

// Worker runs the pipeline cycle on a timer until Run's context is cancelled.
type Worker struct {
	queue       *queue.Queue
	chain       chainadapter.Client
	issuer      *issuer.Issuer
	replicator  *replicator.Replicator
	wallet      *walletcache.Cache
	pollInterval time.Duration
	metrics     *Metrics

	log *logrus.Entry
}

// New builds a Worker wiring the queue, chain adapter, issuer and
// replicator together under the configured poll interval (spec.md §6
// poll_interval).
func New(q *queue.Queue, chain chainadapter.Client, iss *issuer.Issuer, repl *replicator.Replicator, wallet *walletcache.Cache, pollInterval time.Duration) *Worker {
	return &Worker{
		queue:        q,
		chain:        chain,
		issuer:       iss,
		replicator:   repl,
		wallet:       wallet,
		pollInterval: pollInterval,
		metrics:      NewMetrics(),
		log:          logrus.WithField("component", "worker"),
	}
}

// Metrics returns the worker's Prometheus metric set, for mounting under
// promhttp by the caller (e.g. cmd/registrar's serve command).
func (w *Worker) Metrics() *Metrics { return w.metrics }

// Run blocks, executing cycles every pollInterval, until ctx is cancelled.
// An error returned by a cycle is logged and followed by an extra
// full-jitter exponential backoff delay, and the loop still continues, since
// a single fqu's inconsistency must not stall every other queued name. cycle
// only returns errors that regerrors.Fatal reports, so transient chain and
// replication failures do not trigger this backoff: the affected rows stay
// queued and are retried after the next poll interval.
func (w *Worker) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		if w.sleepOrDone(ctx, w.pollInterval) {
			return
		}

		start := time.Now()
		err := w.cycle(ctx)
		w.metrics.cycleSeconds.Observe(time.Since(start).Seconds())
		w.metrics.backoffLevel.Set(backoff.Seconds())
		w.metrics.recordQueueDepth(w.queue)

		if err != nil {
			w.metrics.cycleErrors.Inc()
			w.log.WithError(err).Warn("pipeline cycle failed")
			if w.sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minBackoff
	}
}

// sleepOrDone sleeps in increments of at most one second so ctx cancellation
// is observed within a second regardless of how long d is.
func (w *Worker) sleepOrDone(ctx context.Context, d time.Duration) (done bool) {
	const tick = 1 * time.Second
	remaining := d
	for remaining > 0 {
		step := tick
		if remaining < step {
			step = remaining
		}
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return true
		case <-timer.C:
			remaining -= step
		}
	}
	return false
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	jittered := time.Duration(rand.Int63n(int64(next)))
	if jittered < minBackoff {
		jittered = minBackoff
	}
	return jittered
}

// cycle runs one full pass over every step, in order. A fatal error from
// any step aborts the remaining steps for this cycle and is returned. A
// non-fatal error returned by a step is neither logged nor returned here;
// the next step runs regardless. Per-entry failures inside the steps are
// logged and annotated on their rows by the steps themselves.
func (w *Worker) cycle(ctx context.Context) error {
	if w.wallet.OwnerAddress() == "" {
		// Step 0: wallet gate. A locked wallet means no broadcasting or
		// signing is possible, so every other step is skipped this cycle.
		return nil
	}

	if err := w.registerPreorders(ctx); err != nil && regerrors.Fatal(err) {
		return err
	}
	if err := w.setZonefiles(ctx); err != nil && regerrors.Fatal(err) {
		return err
	}
	failedNames, err := w.replicateUpdates(ctx)
	if err != nil && regerrors.Fatal(err) {
		return err
	}
	if err := w.transferNames(ctx, failedNames); err != nil && regerrors.Fatal(err) {
		return err
	}
	if err := w.replicateNameImports(ctx); err != nil && regerrors.Fatal(err) {
		return err
	}
	if err := w.clearConfirmed(ctx); err != nil && regerrors.Fatal(err) {
		return err
	}
	return nil
}

// registerPreorders is step 1: every preorder entry with enough
// confirmations is promoted to a register broadcast, carrying the preorder's
// zone file, token file and transfer address forward onto the register row,
// and the preorder row is removed once the register transaction is accepted
// by the adapter (or the name turns out to already be registered).
func (w *Worker) registerPreorders(ctx context.Context) error {
	accepted, err := w.queue.FindAccepted(ctx, queue.CategoryPreorder, w.chain)
	if err != nil {
		return err
	}
	var done []queue.Entry
	for _, e := range accepted {
		hasRegister, err := w.queue.Contains(queue.CategoryRegister, e.FQU)
		if err != nil {
			return err
		}
		if hasRegister {
			done = append(done, e)
			continue
		}
		if _, err := w.issuer.Register(ctx, e.FQU, true, e.Payload, e.TokenFile, e.TransferAddress); err != nil {
			w.log.WithError(err).WithField("fqu", e.FQU).Warn("register broadcast failed")
			w.annotate(queue.CategoryPreorder, e.FQU, err)
			if errors.Is(err, regerrors.ErrAlreadyRegistered) {
				done = append(done, e)
			}
			continue
		}
		done = append(done, e)
	}
	return w.queue.RemoveAll(done)
}

// setZonefiles is step 2: every confirmed register entry is promoted to a
// name_update broadcast carrying forward the zone file and token file
// payload from its preorder/register row (spec.md §4.7 step 2, §3 invariant
// 3: "a register is only cleared after a corresponding update row is
// enqueued"). If an update row already exists for the name — e.g. a second
// cycle observing the same register before it was cleared — the register row
// is simply dropped instead of being resubmitted.
func (w *Worker) setZonefiles(ctx context.Context) error {
	accepted, err := w.queue.FindAccepted(ctx, queue.CategoryRegister, w.chain)
	if err != nil {
		return err
	}
	var done []queue.Entry
	for _, e := range accepted {
		hasUpdate, err := w.queue.Contains(queue.CategoryUpdate, e.FQU)
		if err != nil {
			return err
		}
		if hasUpdate {
			done = append(done, e)
			continue
		}
		if _, _, err := w.issuer.Update(ctx, e.FQU, e.Payload, e.TokenFile, "", e.TransferAddress); err != nil {
			w.log.WithError(err).WithField("fqu", e.FQU).Warn("zonefile update broadcast failed")
			w.annotate(queue.CategoryRegister, e.FQU, err)
			continue
		}
		done = append(done, e)
	}
	return w.queue.RemoveAll(done)
}

// replicateUpdates is step 3: every confirmed update entry has its zone file
// pushed to atlas peers and its token file persisted to storage. The row is
// deliberately NOT removed here — step 4 (transferNames) still needs it to
// decide whether a transfer must follow. Names whose replication failed this
// cycle are returned so step 4 can skip them (spec.md §4.7 step 3:
// "failedNames").
func (w *Worker) replicateUpdates(ctx context.Context) (failedNames map[string]bool, err error) {
	failed := make(map[string]bool)
	accepted, err := w.queue.FindAccepted(ctx, queue.CategoryUpdate, w.chain)
	if err != nil {
		return nil, err
	}
	for _, e := range accepted {
		if ok, failErr := w.replicateEntry(ctx, queue.CategoryUpdate, e); failErr != nil {
			return nil, failErr
		} else if !ok {
			failed[e.FQU] = true
		}
	}
	return failed, nil
}

// replicateNameImports is step 5: name_import rows get the same zone/token
// file replication treatment as updates. Unlike update rows, name_import rows
// have no transfer-address gate, so step 6 clears them unconditionally once
// confirmed regardless of this step's outcome.
func (w *Worker) replicateNameImports(ctx context.Context) error {
	accepted, err := w.queue.FindAccepted(ctx, queue.CategoryNameImport, w.chain)
	if err != nil {
		return err
	}
	for _, e := range accepted {
		if _, err := w.replicateEntry(ctx, queue.CategoryNameImport, e); err != nil {
			return err
		}
	}
	return nil
}

// replicateEntry pushes e's zone file and token file, annotating and
// reporting failure (ok=false) rather than returning an error for ordinary
// transient replication failures, so the caller can keep processing the rest
// of the batch.
func (w *Worker) replicateEntry(ctx context.Context, category queue.Category, e queue.Entry) (ok bool, err error) {
	if len(e.Payload) > 0 {
		pushed, err := w.replicator.ReplicateZonefile(ctx, e.FQU, e.Payload)
		if err != nil {
			w.log.WithError(err).WithField("fqu", e.FQU).Warn("zonefile replication failed")
			w.annotate(category, e.FQU, err)
			return false, nil
		}
		if !pushed && !replicator.IsDeletion(e.Payload) {
			// Not pushed: either already replicated this lifetime, or the
			// chain does not show this hash yet, in which case retry later.
			current, err := w.chain.IsZonefileHashCurrent(ctx, e.FQU, replicator.ZonefileHash(e.Payload))
			if err != nil || !current {
				return false, nil
			}
		}
	}
	if len(e.TokenFile) > 0 {
		if _, err := w.replicator.ReplicateTokenFile(ctx, e.FQU, e.ZonefileHash, e.Payload, e.TokenFile); err != nil {
			w.log.WithError(err).WithField("fqu", e.FQU).Warn("token file replication failed")
			w.annotate(category, e.FQU, err)
			return false, nil
		}
	}
	return true, nil
}

// transferNames is step 4: every confirmed update entry not in failedNames is
// checked against the chain's current owner (spec.md §3 invariant 4: an
// update with a transfer_address must not be cleared until the chain shows
// the name at that address or a transfer is broadcast). An update with no
// transfer_address is terminal and is dropped directly.
func (w *Worker) transferNames(ctx context.Context, failedNames map[string]bool) error {
	accepted, err := w.queue.FindAccepted(ctx, queue.CategoryUpdate, w.chain)
	if err != nil {
		return err
	}
	var done []queue.Entry
	for _, e := range accepted {
		if failedNames[e.FQU] {
			continue
		}
		if !e.HasTransferAddress() {
			done = append(done, e)
			continue
		}
		rec, err := w.chain.GetNameRecord(ctx, e.FQU)
		if err != nil {
			w.log.WithError(err).WithField("fqu", e.FQU).Warn("name record lookup failed")
			w.annotate(queue.CategoryUpdate, e.FQU, err)
			continue
		}
		if rec.Address == e.TransferAddress {
			done = append(done, e)
			continue
		}
		if _, err := w.issuer.Transfer(ctx, e.FQU, e.TransferAddress, true); err != nil {
			w.log.WithError(err).WithField("fqu", e.FQU).Warn("transfer broadcast failed")
			w.annotate(queue.CategoryUpdate, e.FQU, err)
			continue
		}
		done = append(done, e)
	}
	return w.queue.RemoveAll(done)
}

// clearConfirmed is step 6: transfer, revoke, renew and name_import rows need
// no follow-up beyond on-chain confirmation (register and update rows are
// handled by steps 2 and 4 respectively), so once accepted they are removed.
// It also expires stale preorders per the chain's current tip height.
func (w *Worker) clearConfirmed(ctx context.Context) error {
	for _, category := range []queue.Category{queue.CategoryTransfer, queue.CategoryRevoke, queue.CategoryRenew, queue.CategoryNameImport} {
		accepted, err := w.queue.FindAccepted(ctx, category, w.chain)
		if err != nil {
			return err
		}
		if err := w.queue.RemoveAll(accepted); err != nil {
			return err
		}
	}

	height, err := w.chain.BlockHeight(ctx)
	if err != nil {
		w.log.WithError(err).Warn("block height lookup failed")
		return nil
	}
	if err := w.queue.CleanupPreorderExpired(height); err != nil {
		w.log.WithError(err).Warn("preorder expiry cleanup failed")
	}
	return nil
}

func (w *Worker) annotate(category queue.Category, fqu string, err error) {
	if aErr := w.queue.AddErrorMessage(category, fqu, err.Error()); aErr != nil {
		w.log.WithError(aErr).Warn("failed to annotate queue entry with error")
	}
}
