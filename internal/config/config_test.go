package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
env: test
database:
  url: postgres://localhost/storefront
auth:
  jwt_secret: secret
chain:
  chain_id: 31337
  factory_address: "0x00000000000000000000000000000000000000f1"
kafka:
  brokers: ["localhost:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "postgres://localhost/storefront", cfg.Database.URL)
	assert.Equal(t, int64(31337), cfg.Chain.ChainID)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)

	// defaults fill whatever the file leaves out
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 2*time.Minute, cfg.Chain.ReceiptTimeout)
	assert.Equal(t, 8, cfg.Resolver.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Redis.NonceTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
