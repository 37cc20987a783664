// Package locks implements the advisory lock service the execution gate
// uses to serialize concurrent runbooks touching overlapping write-sets.
// It generalizes the teacher's single-key pg_advisory_xact_lock pattern
// to a sorted list of keys acquired within one transaction.
package locks

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/runbookd/runbookd/internal/metrics"
)

// LockMode is the acquisition mode for one key.
type LockMode int

const (
	Read LockMode = iota
	Write
)

// AcquireMode selects whether acquisition blocks on contention.
type AcquireMode int

const (
	Try AcquireMode = iota
	Wait
)

// Key identifies one advisory-locked resource.
type Key struct {
	EntityType string
	ID         string
	Mode       LockMode
}

// ContentionError reports the first key that could not be acquired in Try
// mode.
type ContentionError struct {
	EntityType string
	ID         string
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("locks: contention on %s/%s", e.EntityType, e.ID)
}

// Stats summarizes what a single AcquireLocks call did, returned to the
// gate for inclusion in RunbookExecutionResult.
type Stats struct {
	Acquired int
	WaitedMs int64
}

// AcquireLocks attempts to acquire every key in order within tx. Keys must
// already be sorted by (entity_type, id) by the caller — this service does
// not re-sort, per the ordering guarantee that makes the multi-runbook
// lock graph acyclic by construction.
func AcquireLocks(ctx context.Context, tx pgx.Tx, keys []Key, mode AcquireMode) (Stats, error) {
	var stats Stats
	for _, k := range keys {
		lockKey := advisoryKey(k)
		if mode == Try {
			var acquired bool
			row := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, lockKey)
			if err := row.Scan(&acquired); err != nil {
				return stats, fmt.Errorf("locks: try-acquire %s/%s: %w", k.EntityType, k.ID, err)
			}
			if !acquired {
				metrics.RecordLockContention(k.EntityType)
				return stats, &ContentionError{EntityType: k.EntityType, ID: k.ID}
			}
		} else {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
				return stats, fmt.Errorf("locks: wait-acquire %s/%s: %w", k.EntityType, k.ID, err)
			}
		}
		stats.Acquired++
	}
	return stats, nil
}

// advisoryKey folds an (entity_type, id) pair into the int64 key
// pg_advisory_xact_lock expects.
func advisoryKey(k Key) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(k.EntityType))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.ID))
	return int64(h.Sum64())
}

// SortKeys orders keys by (entity_type, id), the order callers must
// present to AcquireLocks.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EntityType != keys[j].EntityType {
			return keys[i].EntityType < keys[j].EntityType
		}
		return keys[i].ID < keys[j].ID
	})
}
