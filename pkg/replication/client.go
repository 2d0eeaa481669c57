package replication

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/nucleus/remdb/pkg/replicpb"
)

// runClient owns one peer's connection lifecycle: dial, subscribe to every
// configured tablespace, and on any stream error, back off and redial. This
// mirrors pkg/embedpipeline's worker retry loop (cenkalti/backoff/v4 around
// a retryable call), applied here to a long-lived connection instead of a
// single request.
func (m *Manager) runClient(ctx context.Context, peerID, addr string, cs *clientState) {
	tablespaces := m.cfg.Tablespaces
	if len(tablespaces) == 0 {
		// No explicit tablespace list: subscribe with a wildcard offer and
		// rely on live broadcast only (historical catch-up needs a concrete
		// tablespace to scan the WAL prefix).
		tablespaces = []string{""}
	}

	bo := backoff.NewExponentialBackOff()
	for {
		select {
		case <-m.closed:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn, err := m.dialer(addr)
		if err != nil {
			cs.recordErr(err)
			if !m.wait(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}

		client := replicpb.NewReplicationServiceClient(conn)
		cs.setRunning(true)

		// One stream per tablespace; the first stream error cancels its
		// siblings so the whole connection redials together.
		g, gctx := errgroup.WithContext(ctx)
		for _, ts := range tablespaces {
			ts := ts
			g.Go(func() error {
				return m.subscribeOne(gctx, client, peerID, ts)
			})
		}
		if err := g.Wait(); err != nil && ctx.Err() == nil {
			cs.recordErr(err)
			log.Printf("replication: subscribe to peer %s (%s): %v", peerID, addr, err)
		}
		_ = conn.Close()
		cs.setRunning(false)

		if !m.wait(ctx, bo.NextBackOff()) {
			return
		}
	}
}

// subscribeOne runs a single Subscribe stream to completion (until the peer
// closes it or the context is cancelled), applying every entry with
// last-write-wins conflict resolution and persisting the watermark after
// each successful apply so a reconnect resumes past it.
func (m *Manager) subscribeOne(ctx context.Context, client replicpb.ReplicationServiceClient, peerID, tablespace string) error {
	stream, err := client.Subscribe(ctx)
	if err != nil {
		return err
	}

	seq, err := m.watermark(peerID, m.cfg.TenantID, tablespace)
	if err != nil {
		return err
	}
	if err := stream.Send(&replicpb.WatermarkOffer{
		PeerId:     m.cfg.PeerID,
		TenantId:   m.cfg.TenantID,
		Tablespace: tablespace,
		SeqNum:     seq,
	}); err != nil {
		return err
	}

	for {
		pb, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		entry := fromPB(pb)
		if entry.Encrypted {
			if m.seal == nil {
				log.Printf("replication: dropping encrypted entry from %s, no encryption key configured", peerID)
				continue
			}
			plain, err := m.seal.open(entry.Nonce, entry.Value)
			if err != nil {
				log.Printf("replication: decrypt entry from %s: %v", peerID, err)
				continue
			}
			entry.Value, entry.Encrypted, entry.Nonce = plain, false, nil
		}
		if err := m.applyRemote(entry); err != nil {
			log.Printf("replication: apply entry seq=%d from %s: %v", entry.SeqNum, peerID, err)
			continue
		}
		if err := m.setWatermark(peerID, entry.TenantID, entry.Tablespace, entry.SeqNum); err != nil {
			return err
		}
		// Forward into this node's own mesh so a 3+ node topology converges
		// without every node dialing every other node directly. Entries this
		// node originated are not forwarded again (loop suppression).
		if entry.SourcePeerID != m.cfg.PeerID {
			m.Broadcast(entry)
		}
	}
}

func (m *Manager) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-m.closed:
		return false
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (cs *clientState) setRunning(v bool) {
	cs.mu.Lock()
	cs.running = v
	cs.mu.Unlock()
}

func (cs *clientState) recordErr(err error) {
	cs.mu.Lock()
	cs.lastErr = err.Error()
	cs.mu.Unlock()
}
