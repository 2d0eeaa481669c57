package remdb

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/replication"
)

// Config is the process-environment configuration surface.
type Config struct {
	DBPath            string            // P8_DB_PATH
	TenantID          string            // P8_TENANT_ID
	DefaultEmbedding  string            // P8_DEFAULT_EMBEDDING
	DefaultLLM        string            // P8_DEFAULT_LLM
	Peers             map[string]string // REM_REPLICATION_PEERS: "peer@host:port,..."
	ReplicationTenant string            // REM_REPLICATION_TENANT_ID
	EncryptionKey     []byte            // REM_REPLICATION_KEY: 64 hex chars
	ListenAddr        string            // REM_LISTEN_ADDR, server binary only
}

// ConfigFromEnv reads the process environment, applying the defaults an
// unconfigured single-node deployment needs.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		DBPath:            getEnv("P8_DB_PATH", "./remdb-data"),
		TenantID:          getEnv("P8_TENANT_ID", "default"),
		DefaultEmbedding:  getEnv("P8_DEFAULT_EMBEDDING", DefaultProviderName),
		DefaultLLM:        getEnv("P8_DEFAULT_LLM", ""),
		ReplicationTenant: getEnv("REM_REPLICATION_TENANT_ID", ""),
		ListenAddr:        getEnv("REM_LISTEN_ADDR", ":9000"),
	}
	if cfg.ReplicationTenant == "" {
		cfg.ReplicationTenant = cfg.TenantID
	}

	peers, err := ParsePeers(getEnv("REM_REPLICATION_PEERS", ""))
	if err != nil {
		return Config{}, err
	}
	cfg.Peers = peers

	if raw := getEnv("REM_REPLICATION_KEY", ""); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return Config{}, remerr.Wrap(remerr.CodeSchemaViolation, err, "REM_REPLICATION_KEY must be hex")
		}
		if len(key) != 32 {
			return Config{}, remerr.New(remerr.CodeSchemaViolation, "REM_REPLICATION_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.EncryptionKey = key
	}
	return cfg, nil
}

// ParsePeers parses the "peer@host:port,..." peer-list syntax into a
// peer_id -> dial-address map.
func ParsePeers(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	peers := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, addr, ok := strings.Cut(part, "@")
		if !ok || id == "" || addr == "" {
			return nil, remerr.New(remerr.CodeSchemaViolation, "bad peer entry %q, want peer@host:port", part)
		}
		peers[id] = addr
	}
	return peers, nil
}

// ReplicationConfig builds a replication.Config from the environment
// config; nil when no peers are configured and no encryption key forces a
// server-only mesh.
func (c Config) ReplicationConfig(peerID string) *replication.Config {
	if len(c.Peers) == 0 && c.EncryptionKey == nil {
		return nil
	}
	return &replication.Config{
		PeerID:        peerID,
		TenantID:      c.ReplicationTenant,
		Peers:         c.Peers,
		EncryptionKey: c.EncryptionKey,
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
