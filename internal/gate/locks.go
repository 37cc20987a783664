package gate

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	lockssvc "github.com/runbookd/runbookd/internal/locks"
)

// acquireWriteSetLocks opens a transaction and attempts to acquire an
// advisory write lock for every entity id in writeSet, in the given mode.
// The write-set entries are opaque entity ids (possibly "step:<uuid>"
// placeholders for not-yet-created entities); they are treated as a
// single synthetic entity type since the compiler has already folded
// entity-type distinctions into the id namespace at write-set time.
func acquireWriteSetLocks(ctx context.Context, pool *pgxpool.Pool, writeSet []string, mode lockssvc.AcquireMode) (lockssvc.Stats, error) {
	sorted := append([]string(nil), writeSet...)
	sort.Strings(sorted)

	keys := make([]lockssvc.Key, len(sorted))
	for i, id := range sorted {
		keys[i] = lockssvc.Key{EntityType: "runbook_write_set", ID: id, Mode: lockssvc.Write}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return lockssvc.Stats{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stats, err := lockssvc.AcquireLocks(ctx, tx, keys, mode)
	if err != nil {
		return stats, err
	}
	if err := tx.Commit(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

func asContention(err error, target **lockssvc.ContentionError) bool {
	return errors.As(err, target)
}
