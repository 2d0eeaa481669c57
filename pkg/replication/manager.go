// Package replication implements the peer-to-peer WAL streaming mesh:
// each node broadcasts every local write to its subscribers and pulls from
// its configured peers, applying remote entries with last-write-wins
// conflict resolution and source_peer_id loop suppression.
package replication

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nucleus/remdb/pkg/entitystore"
	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/replicpb"
	"github.com/nucleus/remdb/pkg/storage"
	"github.com/nucleus/remdb/pkg/wal"
)

// Config configures one node's replication mesh.
type Config struct {
	// PeerID identifies this node in WAL entries' source_peer_id and in
	// watermark bookkeeping. Required.
	PeerID string
	// TenantID scopes which tenant's writes this mesh replicates. REM is
	// multi-tenant per process, so one manager
	// replicates one tenant.
	TenantID string
	// Tablespaces lists the schemas to replicate. Empty means every
	// tablespace, pulled through one wildcard subscription per peer; that
	// subscription streams live entries only and replays no WAL history.
	Tablespaces []string
	// Peers maps peer_id -> dial address ("host:port") for outbound
	// Subscribe connections this node initiates (REM_REPLICATION_PEERS).
	Peers map[string]string
	// EncryptionKey, when non-empty, must be 32 bytes and turns on
	// ChaCha20-Poly1305 sealing of WALEntry.Value on the wire.
	EncryptionKey []byte
}

// Manager runs the replication server (accepting Subscribe/Publish from
// peers) and the client mesh (dialing configured peers), and is the
// entitystore.Replicator that broadcasts local writes to both.
type Manager struct {
	cfg    Config
	eng    *storage.Engine
	store  *entitystore.Store
	seal   *sealer
	dialer func(addr string) (*grpc.ClientConn, error)

	mu   sync.Mutex
	subs map[int]chan wal.Entry // live Subscribe listeners, server-side
	next int

	grpcServer *grpc.Server
	clients    map[string]*clientState

	closed chan struct{}
	wg     sync.WaitGroup
}

type clientState struct {
	mu      sync.Mutex
	running bool
	lastErr string
}

// New builds a Manager wired to store. Call Start to begin serving and
// dialing peers.
func New(cfg Config, eng *storage.Engine, store *entitystore.Store) (*Manager, error) {
	if cfg.PeerID == "" {
		return nil, remerr.New(remerr.CodeStorageFatal, "replication: peer_id is required")
	}
	seal, err := newSealer(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:     cfg,
		eng:     eng,
		store:   store,
		seal:    seal,
		subs:    make(map[int]chan wal.Entry),
		clients: make(map[string]*clientState),
		closed:  make(chan struct{}),
	}
	m.dialer = func(addr string) (*grpc.ClientConn, error) {
		return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	store.SetReplicator(m)
	return m, nil
}

// Serve registers the replication service on an already-constructed
// *grpc.Server.
func (m *Manager) Serve(s *grpc.Server) {
	m.grpcServer = s
	replicpb.RegisterReplicationServiceServer(s, &server{m: m})
}

// Start dials every configured peer and begins pull-mode subscription. It
// returns immediately; dialing and catch-up replay happen on background
// goroutines supervised with exponential backoff (pkg/embedpipeline uses the
// same cenkalti/backoff pattern for its provider-call retries).
func (m *Manager) Start(ctx context.Context) {
	for peerID, addr := range m.cfg.Peers {
		cs := &clientState{}
		m.mu.Lock()
		m.clients[peerID] = cs
		m.mu.Unlock()
		m.wg.Add(1)
		go func(peerID, addr string) {
			defer m.wg.Done()
			m.runClient(ctx, peerID, addr, cs)
		}(peerID, addr)
	}
}

// Stop tears down the client mesh. The gRPC server, owned by the caller of
// Serve, is stopped separately.
func (m *Manager) Stop() {
	close(m.closed)
	m.wg.Wait()
}

// Broadcast fans entry out to every live Subscribe stream, skipping
// tablespaces outside Config.Tablespaces when that list is set. Entries
// learned from a peer are forwarded too, so a mesh, not just a star,
// converges. Subscribers are keyed by connection, not by peer, so an entry
// can reach the peer it came from; that peer drops it in applyRemote and
// does not forward it again.
func (m *Manager) Broadcast(entry wal.Entry) {
	if m.cfg.Tablespaces != nil && !contains(m.cfg.Tablespaces, entry.Tablespace) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- entry:
		default:
			log.Printf("replication: subscriber channel full, dropping entry seq=%d tablespace=%s", entry.SeqNum, entry.Tablespace)
		}
	}
}

func (m *Manager) addSub() (int, chan wal.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	ch := make(chan wal.Entry, 1024)
	m.subs[id] = ch
	return id, ch
}

func (m *Manager) removeSub(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

// applyRemote decodes entry's Value as a JSON-marshaled Entity and applies
// it through entitystore's last-write-wins path, suppressing re-application
// of entries this node itself originated (loop suppression).
func (m *Manager) applyRemote(entry wal.Entry) error {
	if entry.SourcePeerID == m.cfg.PeerID {
		return nil
	}
	value := entry.Value
	if entry.Encrypted {
		if m.seal == nil {
			return remerr.New(remerr.CodeReplicationTransient, "received encrypted entry but no encryption key is configured")
		}
		plain, err := m.seal.open(entry.Nonce, value)
		if err != nil {
			return err
		}
		value = plain
	}
	var e entitystore.Entity
	if err := json.Unmarshal(value, &e); err != nil {
		return remerr.Wrap(remerr.CodeReplicationTransient, err, "unmarshal replicated entity")
	}
	_, err := m.store.ApplyReplicated(entry.TenantID, &e, entry.SourcePeerID)
	return err
}

// watermark returns the highest applied seq_num for (tenant, tablespace)
// from peerID, as persisted by setWatermark, so a reconnect resumes
// catch-up replay instead of replaying from the start.
func (m *Manager) watermark(peerID, tenant, tablespace string) (uint64, error) {
	raw, found, err := m.eng.Get(storage.WatermarkKey(tenant, tablespace, peerID))
	if err != nil || !found {
		return 0, err
	}
	return storage.DecodeUint64(raw), nil
}

func (m *Manager) setWatermark(peerID, tenant, tablespace string, seq uint64) error {
	b := m.eng.NewBatch()
	defer b.Close()
	if err := b.Put(storage.WatermarkKey(tenant, tablespace, peerID), storage.EncodeUint64(seq)); err != nil {
		return err
	}
	return b.Commit()
}

// Health reports the node's replication status: running state, this
// node's peer id, and per-peer client status.
func (m *Manager) Health() map[string]any {
	m.mu.Lock()
	clients := make(map[string]any, len(m.clients))
	for id, cs := range m.clients {
		cs.mu.Lock()
		clients[id] = map[string]any{"running": cs.running, "last_error": cs.lastErr}
		cs.mu.Unlock()
	}
	m.mu.Unlock()
	return map[string]any{
		"running": true,
		"peer_id": m.cfg.PeerID,
		"server":  map[string]any{"subscriber_count": len(m.subs)},
		"clients": clients,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func toPB(e wal.Entry) *replicpb.WALEntry {
	return &replicpb.WALEntry{
		SeqNum:       e.SeqNum,
		TenantId:     e.TenantID,
		Tablespace:   e.Tablespace,
		Operation:    string(e.Operation),
		Key:          e.Key,
		Value:        e.Value,
		TimestampUs:  e.Timestamp,
		SourcePeerId: e.SourcePeerID,
	}
}

func fromPB(p *replicpb.WALEntry) wal.Entry {
	return wal.Entry{
		SeqNum:       p.SeqNum,
		TenantID:     p.TenantId,
		Tablespace:   p.Tablespace,
		Operation:    wal.Operation(p.Operation),
		Key:          p.Key,
		Value:        p.Value,
		Timestamp:    p.TimestampUs,
		SourcePeerID: p.SourcePeerId,
		Encrypted:    p.Encrypted,
		Nonce:        p.Nonce,
	}
}
