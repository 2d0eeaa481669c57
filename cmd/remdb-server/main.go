// Command remdb-server runs one REM database node: it opens the tenant's
// embedded database and serves the replication service (Subscribe/Publish/
// HealthCheck) to its configured peers.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nucleus/remdb"
)

func main() {
	cfg, err := remdb.ConfigFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	peerID := os.Getenv("REM_PEER_ID")
	if peerID == "" {
		peerID = cfg.TenantID + "@" + cfg.ListenAddr
	}

	opts := []remdb.Option{remdb.WithPeerID(peerID)}
	if rc := cfg.ReplicationConfig(peerID); rc != nil {
		opts = append(opts, remdb.WithReplication(*rc))
	}

	db, err := remdb.Open(cfg.TenantID, cfg.DBPath, opts...)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	grpcServer := grpc.NewServer()
	if mgr := db.Replication(); mgr != nil {
		mgr.Serve(grpcServer)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mgr.Start(ctx)
	}
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := db.Compact(context.Background()); err != nil {
				log.Printf("compaction: %v", err)
			} else if n > 0 {
				log.Printf("compaction removed %d tombstoned rows", n)
			}
		}
	}()

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Printf("shutting down")
		grpcServer.GracefulStop()
	}()

	log.Printf("remdb gRPC listening on %s (tenant=%s peer=%s)", cfg.ListenAddr, cfg.TenantID, peerID)
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
