package remdb

import (
	"testing"

	"github.com/nucleus/remdb/pkg/remerr"
)

func TestParsePeers(t *testing.T) {
	peers, err := ParsePeers("a@host1:9000, b@host2:9001")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(peers) != 2 || peers["a"] != "host1:9000" || peers["b"] != "host2:9001" {
		t.Fatalf("unexpected peers %v", peers)
	}

	if peers, err := ParsePeers(""); err != nil || peers != nil {
		t.Fatalf("expected empty parse to be nil, got %v %v", peers, err)
	}

	if _, err := ParsePeers("no-at-sign:9000"); remerr.CodeOf(err) != remerr.CodeSchemaViolation {
		t.Fatalf("expected SchemaViolation for malformed peer, got %v", err)
	}
}

func TestConfigFromEnvDefaultsAndKey(t *testing.T) {
	t.Setenv("P8_DB_PATH", "/tmp/remdb-test")
	t.Setenv("P8_TENANT_ID", "acme")
	t.Setenv("REM_REPLICATION_PEERS", "b@localhost:9001")
	t.Setenv("REM_REPLICATION_KEY", "")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.DBPath != "/tmp/remdb-test" || cfg.TenantID != "acme" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ReplicationTenant != "acme" {
		t.Fatalf("expected replication tenant to default to tenant id, got %q", cfg.ReplicationTenant)
	}
	if cfg.Peers["b"] != "localhost:9001" {
		t.Fatalf("unexpected peers %v", cfg.Peers)
	}
	if rc := cfg.ReplicationConfig("me"); rc == nil || rc.PeerID != "me" || rc.TenantID != "acme" {
		t.Fatalf("unexpected replication config %+v", rc)
	}

	t.Setenv("REM_REPLICATION_KEY", "zz")
	if _, err := ConfigFromEnv(); remerr.CodeOf(err) != remerr.CodeSchemaViolation {
		t.Fatalf("expected SchemaViolation for bad key, got %v", err)
	}
}
