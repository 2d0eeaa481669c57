package entitystore

import (
	"context"
	"fmt"
	"strings"

	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/storage"
	"github.com/nucleus/remdb/pkg/wal"
)

// Compact hard-deletes tombstoned entities of one schema whose DELETE WAL
// entry sits at or below watermark, i.e. once every replication watermark
// has advanced past their WAL seq. The consumed WAL entries
// are pruned in the same batch: every peer has already replayed past them,
// so no catch-up stream can need them again. Returns the number of rows
// removed.
func (s *Store) Compact(ctx context.Context, tenant, schemaName string, watermark uint64) (int, error) {
	schema, err := s.schemas.Get(schemaName)
	if err != nil {
		return 0, err
	}

	lock := s.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	entries, err := wal.Since(s.eng, tenant, schema.Name, 0)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.Operation != wal.OpDelete || entry.SeqNum > watermark {
			continue
		}
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		id, ok := entityIDFromKey(entry.Key)
		if !ok {
			continue
		}
		e, found, err := s.getLocked(tenant, id)
		if err != nil {
			return removed, err
		}
		// A later upsert may have resurrected the key; only rows that are
		// still tombstoned are eligible.
		if !found || !e.IsDeleted() {
			if err := s.pruneWALEntry(tenant, schema.Name, entry.SeqNum); err != nil {
				return removed, err
			}
			continue
		}

		b := s.eng.NewBatch()
		if err := b.Delete([]byte(entry.Key)); err != nil {
			b.Close()
			return removed, remerr.Wrap(remerr.CodeStorageFatal, err, "compact entity body")
		}
		if err := b.Delete(storage.IDIndexKey(tenant, id)); err != nil {
			b.Close()
			return removed, remerr.Wrap(remerr.CodeStorageFatal, err, "compact id index")
		}
		if err := b.Delete(storage.LWWKey(entry.Key)); err != nil {
			b.Close()
			return removed, remerr.Wrap(remerr.CodeStorageFatal, err, "compact lww record")
		}
		if schema.KeyField != "" {
			if v, ok := e.Properties[schema.KeyField]; ok {
				if keyValue := fmt.Sprint(v); keyValue != "" {
					if err := b.Delete(storage.KeyIndexKey(tenant, keyValue)); err != nil {
						b.Close()
						return removed, remerr.Wrap(remerr.CodeStorageFatal, err, "compact key index")
					}
				}
			}
		}
		if err := b.Delete(storage.WALSeqKey(tenant, schema.Name, entry.SeqNum)); err != nil {
			b.Close()
			return removed, remerr.Wrap(remerr.CodeStorageFatal, err, "prune wal entry")
		}
		if err := b.Commit(); err != nil {
			b.Close()
			return removed, err
		}
		b.Close()
		removed++
	}
	return removed, nil
}

func (s *Store) pruneWALEntry(tenant, tablespace string, seq uint64) error {
	b := s.eng.NewBatch()
	defer b.Close()
	if err := b.Delete(storage.WALSeqKey(tenant, tablespace, seq)); err != nil {
		return remerr.Wrap(remerr.CodeStorageFatal, err, "prune wal entry")
	}
	return b.Commit()
}

// entityIDFromKey recovers the entity id from a WAL entry's body key
// (d/tenant/schema/id).
func entityIDFromKey(key string) (string, bool) {
	i := strings.LastIndexByte(key, '/')
	if i < 0 || i == len(key)-1 {
		return "", false
	}
	return key[i+1:], true
}
