package replication

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/replicpb"
	"github.com/nucleus/remdb/pkg/wal"
)

// server implements replicpb.ReplicationServiceServer over a Manager. Split
// out from Manager itself so Manager's public API stays plain Go and the
// gRPC plumbing lives in one place.
type server struct {
	replicpb.UnimplementedReplicationServiceServer
	m *Manager
}

// Subscribe replays WAL history past the caller's offered watermark, then
// streams live entries as Broadcast delivers them.
func (s *server) Subscribe(stream replicpb.ReplicationService_SubscribeServer) error {
	offer, err := stream.Recv()
	if err != nil {
		return err
	}

	if offer.Tablespace != "" {
		entries, err := wal.Since(s.m.eng, offer.TenantId, offer.Tablespace, offer.SeqNum)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := s.sendSealed(stream, e); err != nil {
				return err
			}
		}
	}

	id, ch := s.m.addSub()
	defer s.m.removeSub(id)

	ctx := stream.Context()
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if e.TenantID != offer.TenantId {
				continue
			}
			if offer.Tablespace != "" && e.Tablespace != offer.Tablespace {
				continue
			}
			if err := s.sendSealed(stream, e); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *server) sendSealed(stream replicpb.ReplicationService_SubscribeServer, e wal.Entry) error {
	pb := toPB(e)
	if s.m.seal != nil {
		nonce, ciphertext, err := s.m.seal.seal(pb.Value)
		if err != nil {
			return err
		}
		pb.Value, pb.Nonce, pb.Encrypted = ciphertext, nonce, true
	}
	return stream.Send(pb)
}

// Publish accepts a push-mode peer's WAL entries (the counterpart of a
// remote node's Subscribe-based pull; REM's mesh is pull-by-default but
// Publish lets a peer behind NAT push instead of being dialed).
func (s *server) Publish(stream replicpb.ReplicationService_PublishServer) error {
	var applied uint64
	for {
		pb, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		entry := fromPB(pb)
		if entry.Encrypted {
			if s.m.seal == nil {
				return remerr.New(remerr.CodeReplicationTransient, "received encrypted publish but no encryption key is configured")
			}
			plain, err := s.m.seal.open(entry.Nonce, entry.Value)
			if err != nil {
				return err
			}
			entry.Value, entry.Encrypted, entry.Nonce = plain, false, nil
		}
		if err := s.m.applyRemote(entry); err != nil {
			return err
		}
		if entry.SourcePeerID != s.m.cfg.PeerID {
			s.m.Broadcast(entry)
		}
		applied++
	}
	return stream.SendAndClose(&replicpb.Ack{Applied: applied})
}

// HealthCheck reports this node's replication status.
func (s *server) HealthCheck(ctx context.Context, _ *replicpb.HealthRequest) (*replicpb.StatusResponse, error) {
	details, err := json.Marshal(s.m.Health())
	if err != nil {
		return nil, remerr.Wrap(remerr.CodeStorageFatal, err, "marshal health details")
	}
	return &replicpb.StatusResponse{Running: true, PeerId: s.m.cfg.PeerID, DetailsJson: string(details)}, nil
}
