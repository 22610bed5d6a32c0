package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_http":     "0.0.0.0:80",
		"secret_key":             "my_secret_key",
		"encryption_key_version": 3,
		"encryption_keys":        map[string]string{"3": "00"},
		"s3_bucket":              "bucket",
		"s3_public_base_url":     "https://cdn.example/memes",
		"generation_deadline":    "1m",
		"orphan_grace_period":    "30m",
		"fallback_provider":      "replicate",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "0.0.0.0:80", cfg.EndpointAddrHTTP)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 3, cfg.EncryptionKeyVersion)
		assert.Equal(t, "00", cfg.EncryptionKeys[3])
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "https://cdn.example/memes", cfg.S3PublicBaseURL)
		assert.Equal(t, time.Minute, cfg.GenerationDeadline)
		assert.Equal(t, 30*time.Minute, cfg.OrphanGracePeriod)
		assert.Equal(t, "replicate", cfg.FallbackProvider)

		// untouched fields keep defaults
		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, 45*time.Second, cfg.ProviderTimeout)
	})

	t.Run("no config flag leaves config unchanged", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg
		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))
		assert.Equal(t, want.EndpointAddrHTTP, cfg.EndpointAddrHTTP)
		assert.Equal(t, want.DatabaseDSN, cfg.DatabaseDSN)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ not json`), 0o600))

		cfg := &Config{}
		cfg.LoadDefaults()
		assert.Error(t, parseJson(cfg, []string{"-c", bad}))
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		assert.Error(t, parseJson(cfg, []string{"-c", "/nonexistent/cfg.json"}))
	})

	t.Run("non-numeric key version", func(t *testing.T) {
		p := writeTempJSON(t, map[string]any{"encryption_keys": map[string]string{"one": "00"}})
		cfg := &Config{}
		cfg.LoadDefaults()
		assert.Error(t, parseJson(cfg, []string{"-c", p}))
	})
}

func Test_parseFlags(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	err := parseFlags(cfg, []string{
		"-a", ":81", "-g", ":50052", "-d", "db", "-s", "secret",
		"-b", "bucket", "-e", "http://minio:9000", "-t", "20", "-l", "debug",
		"-unknown", "x",
	})
	require.NoError(t, err)

	assert.Equal(t, ":81", cfg.EndpointAddrHTTP)
	assert.Equal(t, ":50052", cfg.EndpointAddrGRPC)
	assert.Equal(t, "db", cfg.DatabaseDSN)
	assert.Equal(t, "secret", cfg.SecretKey)
	assert.Equal(t, "bucket", cfg.S3Bucket)
	assert.Equal(t, "http://minio:9000", cfg.S3BaseEndpoint)
	assert.Equal(t, 20*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)

	assert.Error(t, parseFlags(cfg, []string{"-t", "soon"}))
}
