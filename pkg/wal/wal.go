// Package wal implements the write-ahead log entries persisted alongside
// every entity-store batch and later
// streamed by pkg/replication to peers.
package wal

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/storage"
)

// Operation names the kind of mutation a WAL entry records.
type Operation string

const (
	OpPut    Operation = "PUT"
	OpDelete Operation = "DELETE"
)

// Entry is one write-ahead log record.
type Entry struct {
	SeqNum       uint64    `json:"seq_num"`
	TenantID     string    `json:"tenant_id"`
	Tablespace   string    `json:"tablespace"`
	Operation    Operation `json:"operation"`
	Key          string    `json:"key"`
	Value        []byte    `json:"value,omitempty"`
	Timestamp    int64     `json:"timestamp"` // microseconds UTC
	SourcePeerID string    `json:"source_peer_id"`
	// Encrypted and Nonce carry ChaCha20-Poly1305 sealing state when this
	// entry travels over an encrypted replication stream; both
	// are empty for entries that only ever live in the local WAL.
	Encrypted bool   `json:"encrypted,omitempty"`
	Nonce     []byte `json:"nonce,omitempty"`
}

// Log issues strictly-increasing sequence numbers per (tenant, tablespace)
// and appends entries into an engine batch so they commit
// atomically with the entity-store mutation that produced them.
type Log struct {
	eng *storage.Engine

	mu   sync.Mutex
	next map[string]uint64 // "tenant/tablespace" -> next seq
}

func NewLog(eng *storage.Engine) *Log {
	return &Log{eng: eng, next: make(map[string]uint64)}
}

func seqMapKey(tenant, tablespace string) string { return tenant + "/" + tablespace }

// nextSeq returns the next sequence number for (tenant, tablespace),
// loading the high-water mark from storage the first time a tablespace is
// touched in this process.
func (l *Log) nextSeq(tenant, tablespace string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	mapKey := seqMapKey(tenant, tablespace)
	if n, ok := l.next[mapKey]; ok {
		l.next[mapKey] = n + 1
		return n, nil
	}

	hw, found, err := l.eng.Get(highWaterKey(tenant, tablespace))
	if err != nil {
		return 0, err
	}
	var start uint64
	if found {
		start = storage.DecodeUint64(hw) + 1
	} else {
		start = 1
	}
	l.next[mapKey] = start + 1
	return start, nil
}

func highWaterKey(tenant, tablespace string) []byte {
	return storage.WatermarkKey(tenant, tablespace, "\x00hw")
}

// Append adds entry to the batch, assigning it the next sequence number,
// and records the new high-water mark. Callers commit the batch alongside
// their own entity-store writes so the entry and its effect land together.
func (l *Log) Append(b *storage.Batch, tenant, tablespace string, op Operation, key string, value []byte, sourcePeerID string) (Entry, error) {
	seq, err := l.nextSeq(tenant, tablespace)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		SeqNum:       seq,
		TenantID:     tenant,
		Tablespace:   tablespace,
		Operation:    op,
		Key:          key,
		Value:        value,
		Timestamp:    time.Now().UnixMicro(),
		SourcePeerID: sourcePeerID,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, remerr.Wrap(remerr.CodeStorageFatal, err, "marshal wal entry")
	}
	if err := b.Put(storage.WALSeqKey(tenant, tablespace, seq), raw); err != nil {
		return Entry{}, remerr.Wrap(remerr.CodeStorageFatal, err, "append wal entry")
	}
	if err := b.Put(highWaterKey(tenant, tablespace), storage.EncodeUint64(seq)); err != nil {
		return Entry{}, remerr.Wrap(remerr.CodeStorageFatal, err, "update wal high-water mark")
	}
	return entry, nil
}

// MinWatermark returns the lowest acknowledged seq_num across every
// watermark recorded for (tenant, tablespace), including the local
// high-water mark. Compaction must never hard-delete a tombstone whose
// delete entry a peer has not yet replayed, so the minimum is the safe
// compaction horizon. Returns 0 when nothing has been written yet.
func MinWatermark(eng *storage.Engine, tenant, tablespace string) (uint64, error) {
	it, err := eng.NewPrefixIterator(storage.WatermarkPrefix(tenant, tablespace))
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var min uint64
	first := true
	for it.Valid() {
		if len(it.Value()) == 8 {
			v := storage.DecodeUint64(it.Value())
			if first || v < min {
				min = v
				first = false
			}
		}
		it.Next()
	}
	if first {
		return 0, nil
	}
	return min, nil
}

// Since scans every entry with seq_num > afterSeq for (tenant, tablespace),
// in order, for replication catch-up replay past a subscriber's watermark.
func Since(eng *storage.Engine, tenant, tablespace string, afterSeq uint64) ([]Entry, error) {
	it, err := eng.NewPrefixIterator(storage.WALLogPrefix(tenant, tablespace))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Entry
	for it.Valid() {
		var e Entry
		if err := json.Unmarshal(it.Value(), &e); err == nil && e.SeqNum > afterSeq {
			out = append(out, e)
		}
		it.Next()
	}
	return out, nil
}
