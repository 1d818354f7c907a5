// Package queue implements the durable multi-category queue described in
// spec.md §4.4, using go.etcd.io/bbolt as the embedded key-value store (the
// Go analogue of ethereum-go-ethereum's syndtr/goleveldb + etcd-io/bbolt
// persistence layer). One bucket per category; the row key is the fqu, so
// bbolt's native per-key uniqueness gives the "(category, fqu)" primary key
// invariant (spec.md §3 invariant 1) for free. Scans return rows in bbolt's
// byte-wise fqu key order, not in insertion order. Concurrency matches
// core/time_locked_node.go's single-mutex-guarded map, with the map swapped
// for a bolt transaction.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"synnergy-registrar/internal/regerrors"
)

// ChainConfirmer is the minimal chain-adapter surface the queue needs to
// resolve FindAccepted (spec.md §4.4: "the queue asks the chain adapter").
type ChainConfirmer interface {
	Confirmations(ctx context.Context, txHash string) (int, error)
}

// Queue is a file-backed multi-category store. One *Queue should be opened
// per configured queue_path; opening it exclusively is enforced at a higher
// level by the engine's lockfile, not by bbolt's own file lock (bbolt does
// take an flock, which is a useful second line of defence).
type Queue struct {
	db                 *bbolt.DB
	mu                 sync.Mutex
	txMinConfirmations int
	preorderWindow     int64
}

// Open creates or opens the bbolt-backed queue at dir/"registrar-queue.db",
// creating one bucket per category.
func Open(dir string, txMinConfirmations int, preorderConfirmWindow int64) (*Queue, error) {
	db, err := bbolt.Open(dir+"/registrar-queue.db", 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("queue: open: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, c := range AllCategories {
			if _, err := tx.CreateBucketIfNotExists([]byte(c)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: init buckets: %w", err)
	}
	return &Queue{db: db, txMinConfirmations: txMinConfirmations, preorderWindow: preorderConfirmWindow}, nil
}

// Close releases the underlying bbolt file handle.
func (q *Queue) Close() error { return q.db.Close() }

// Append inserts entry under (category, entry.FQU). It fails with
// regerrors.ErrAlreadyQueued if a row already exists there, enforcing
// spec.md §3 invariant 1.
func (q *Queue) Append(entry Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(entry.Category))
		if b == nil {
			return fmt.Errorf("queue: unknown category %q", entry.Category)
		}
		if b.Get([]byte(entry.FQU)) != nil {
			return regerrors.ErrAlreadyQueued
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("queue: marshal entry: %w", err)
		}
		return b.Put([]byte(entry.FQU), data)
	})
}

// Contains reports whether a row exists for (category, fqu).
func (q *Queue) Contains(category Category, fqu string) (bool, error) {
	var found bool
	err := q.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(category))
		if b == nil {
			return fmt.Errorf("queue: unknown category %q", category)
		}
		found = b.Get([]byte(fqu)) != nil
		return nil
	})
	return found, err
}

// Find returns up to limit rows for (category, fqu). If fqu is empty, it
// scans the whole category bucket up to limit (limit <= 0 means unbounded).
func (q *Queue) Find(category Category, fqu string, limit int) ([]Entry, error) {
	var out []Entry
	err := q.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(category))
		if b == nil {
			return fmt.Errorf("queue: unknown category %q", category)
		}
		if fqu != "" {
			data := b.Get([]byte(fqu))
			if data == nil {
				return nil
			}
			var e Entry
			if err := json.Unmarshal(data, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// All returns every row in category, used by State() (spec.md §6).
func (q *Queue) All(category Category) ([]Entry, error) {
	return q.Find(category, "", 0)
}

// FindAccepted returns every row in category whose tx_hash has at least
// txMinConfirmations confirmations on-chain (spec.md §4.4).
func (q *Queue) FindAccepted(ctx context.Context, category Category, chain ChainConfirmer) ([]Entry, error) {
	rows, err := q.All(category)
	if err != nil {
		return nil, err
	}
	var accepted []Entry
	for _, e := range rows {
		if e.TxHash == "" {
			continue
		}
		confs, err := chain.Confirmations(ctx, e.TxHash)
		if err != nil {
			return nil, fmt.Errorf("%w: confirmations(%s): %v", regerrors.ErrTransientChain, e.TxHash, err)
		}
		if confs >= q.txMinConfirmations {
			accepted = append(accepted, e)
		}
	}
	return accepted, nil
}

// RemoveAll deletes every entry in entries by primary key. It is idempotent:
// removing an entry that no longer exists is not an error.
func (q *Queue) RemoveAll(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.db.Update(func(tx *bbolt.Tx) error {
		for _, e := range entries {
			b := tx.Bucket([]byte(e.Category))
			if b == nil {
				continue
			}
			if err := b.Delete([]byte(e.FQU)); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddErrorMessage annotates the row at (category, fqu) with a diagnostic
// message for operators. Best-effort: a missing row is not an error.
func (q *Queue) AddErrorMessage(category Category, fqu, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(category))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(fqu))
		if data == nil {
			return nil
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		e.LastError = message
		e.UpdatedAt = time.Now().UTC()
		out, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put([]byte(fqu), out)
	})
}

// CleanupPreorderExpired removes preorder rows whose broadcast height is
// older than the configured preorder confirmation window, given the chain's
// current tip height (spec.md §4.4, §3 "block_height_broadcast").
func (q *Queue) CleanupPreorderExpired(currentHeight int64) error {
	rows, err := q.All(CategoryPreorder)
	if err != nil {
		return err
	}
	var expired []Entry
	for _, e := range rows {
		if e.BlockHeightBroadcast > 0 && currentHeight-e.BlockHeightBroadcast > q.preorderWindow {
			expired = append(expired, e)
		}
	}
	return q.RemoveAll(expired)
}
