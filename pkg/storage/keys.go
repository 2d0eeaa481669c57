package storage

import (
	"encoding/binary"
	"strings"
)

// Column families. Pebble has no native column-family concept (unlike
// RocksDB), so each is modeled as a disjoint key prefix within one LSM.
const (
	cfDefault   = "d" // entity bodies
	cfKeyIndex  = "k" // derived-id -> canonical id
	cfSecondary = "s" // indexed-field postings
	cfHNSW      = "h" // serialized vector index pages
	cfWALMeta   = "w" // replication watermarks + WAL log
	cfIDIndex   = "i" // entity id -> schema, so get(id) needs no schema hint
)

const sep = byte('/')

// EntityKey composes the storage key for an entity body:
// d/tenant/schema/id
func EntityKey(tenant, schema, id string) []byte {
	return joinKey(cfDefault, tenant, schema, id)
}

// SchemaPrefix returns the scan prefix for every entity of a schema.
func SchemaPrefix(tenant, schema string) []byte {
	return joinKey(cfDefault, tenant, schema, "")
}

// TenantPrefix returns the scan prefix for every entity of a tenant (any schema).
func TenantPrefix(tenant string) []byte {
	return append(joinKey(cfDefault, tenant), sep)
}

// IDIndexKey composes the id -> schema lookup key: i/tenant/id. Get takes
// no schema argument, so the store needs this to find an entity's body key
// without the caller naming its schema.
func IDIndexKey(tenant, id string) []byte {
	return joinKey(cfIDIndex, tenant, id)
}

// KeyIndexKey composes the cross-schema key-value lookup key used by
// REM-SQL's LOOKUP: k/tenant/keyValue -> entity id. LOOKUP resolves key
// values across every schema, so this CF is not schema-scoped.
func KeyIndexKey(tenant, keyValue string) []byte {
	return joinKey(cfKeyIndex, tenant, keyValue)
}

// KeyIndexPrefix returns the scan prefix for every key_index entry of a tenant.
func KeyIndexPrefix(tenant string) []byte {
	return append(joinKey(cfKeyIndex, tenant), sep)
}

// PostingKey composes a secondary-index posting key:
// s/tenant/schema/field/value/id
// value is pre-encoded by the caller so that lexicographic order matches
// the field's comparison order (numbers and timestamps big-endian).
func PostingKey(tenant, schema, field string, value []byte, id string) []byte {
	k := joinKey(cfSecondary, tenant, schema, field)
	k = append(k, sep)
	k = append(k, value...)
	k = append(k, sep)
	k = append(k, id...)
	return k
}

// PostingPrefix returns the scan prefix for all postings of (schema, field).
func PostingPrefix(tenant, schema, field string) []byte {
	k := joinKey(cfSecondary, tenant, schema, field)
	return append(k, sep)
}

// PostingValuePrefix returns the scan prefix for all postings of an exact value.
func PostingValuePrefix(tenant, schema, field string, value []byte) []byte {
	k := joinKey(cfSecondary, tenant, schema, field)
	k = append(k, sep)
	k = append(k, value...)
	return append(k, sep)
}

// HNSWPageKey composes a vector-index page key: h/tenant/schema/field/pageID
func HNSWPageKey(tenant, schema, field string, pageID uint64) []byte {
	k := joinKey(cfHNSW, tenant, schema, field)
	k = append(k, sep)
	return append(k, EncodeUint64(pageID)...)
}

// HNSWPrefix returns the scan prefix for all pages of a vector index.
func HNSWPrefix(tenant, schema, field string) []byte {
	k := joinKey(cfHNSW, tenant, schema, field)
	return append(k, sep)
}

// WALSeqKey composes the key under which a WAL entry is persisted:
// w/log/tenant/tablespace/seq (big-endian seq keeps entries ordered).
func WALSeqKey(tenant, tablespace string, seq uint64) []byte {
	k := joinKey(cfWALMeta, "log", tenant, tablespace)
	k = append(k, sep)
	return append(k, EncodeUint64(seq)...)
}

// WALLogPrefix returns the scan prefix for a tablespace's WAL entries.
func WALLogPrefix(tenant, tablespace string) []byte {
	k := joinKey(cfWALMeta, "log", tenant, tablespace)
	return append(k, sep)
}

// WatermarkKey composes the key a peer's applied watermark is stored under:
// w/mark/tenant/tablespace/peerID
func WatermarkKey(tenant, tablespace, peerID string) []byte {
	return joinKey(cfWALMeta, "mark", tenant, tablespace, peerID)
}

// WatermarkPrefix returns the scan prefix for all watermarks of a tenant/tablespace.
func WatermarkPrefix(tenant, tablespace string) []byte {
	k := joinKey(cfWALMeta, "mark", tenant, tablespace)
	return append(k, sep)
}

// LWWKey composes the key a replicated entity's last-applied conflict
// metadata (timestamp, source_peer_id) is stored under, keyed by the same
// entity-body key it guards: w/lww/<entityKey>.
func LWWKey(entityKey string) []byte {
	return joinKey(cfWALMeta, "lww", entityKey)
}

func joinKey(parts ...string) []byte {
	return []byte(strings.Join(parts, string(sep)))
}

// EncodeUint64 returns the big-endian encoding of v, so that byte-order
// comparison matches numeric order.
func EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// DecodeUint64 is the inverse of EncodeUint64.
func DecodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// EncodeInt64 maps a signed 64-bit integer onto an unsigned range that
// preserves ordering under byte comparison (flip the sign bit).
func EncodeInt64(v int64) []byte {
	return EncodeUint64(uint64(v) ^ (1 << 63))
}

// DecodeInt64 is the inverse of EncodeInt64.
func DecodeInt64(b []byte) int64 {
	return int64(DecodeUint64(b) ^ (1 << 63))
}
