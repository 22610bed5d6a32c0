package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/memeforge/internal/flagx"
	"github.com/dmitrijs2005/memeforge/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration, so "45s" and integer nanoseconds are both accepted.
// Absent fields leave the current value untouched.
type JsonConfig struct {
	EndpointAddrHTTP     string            `json:"endpoint_addr_http"`
	EndpointAddrGRPC     string            `json:"endpoint_addr_grpc"`
	DatabaseDSN          string            `json:"database_dsn"`
	SecretKey            string            `json:"secret_key"`
	LogLevel             string            `json:"log_level"`
	EncryptionKeys       map[string]string `json:"encryption_keys"`
	EncryptionKeyVersion int               `json:"encryption_key_version"`
	S3RootUser           string            `json:"s3_root_user"`
	S3RootPassword       string            `json:"s3_root_password"`
	S3Bucket             string            `json:"s3_bucket"`
	S3Region             string            `json:"s3_region"`
	S3BaseEndpoint       string            `json:"s3_base_endpoint"`
	S3PublicBaseURL      string            `json:"s3_public_base_url"`
	ProviderTimeout      timex.Duration    `json:"provider_timeout"`
	GenerationDeadline   timex.Duration    `json:"generation_deadline"`
	HuggingFaceModel     string            `json:"huggingface_model"`
	ReplicateModel       string            `json:"replicate_model"`
	FallbackProvider     string            `json:"fallback_provider"`
	OrphanGracePeriod    timex.Duration    `json:"orphan_grace_period"`
	ReconcileInterval    timex.Duration    `json:"reconcile_interval"`
	AgentCacheTTL        timex.Duration    `json:"agent_cache_ttl"`
}

// parseJson overlays the file named by -c/-config onto config.
// No flag means nothing to load.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.HuggingFaceModel, c.HuggingFaceModel)
	setString(&config.ReplicateModel, c.ReplicateModel)
	setString(&config.FallbackProvider, c.FallbackProvider)

	if c.EncryptionKeyVersion != 0 {
		config.EncryptionKeyVersion = c.EncryptionKeyVersion
	}
	for v, key := range c.EncryptionKeys {
		version, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("encryption key version %q is not a number", v)
		}
		config.EncryptionKeys[version] = key
	}

	setDuration(&config.ProviderTimeout, c.ProviderTimeout)
	setDuration(&config.GenerationDeadline, c.GenerationDeadline)
	setDuration(&config.OrphanGracePeriod, c.OrphanGracePeriod)
	setDuration(&config.ReconcileInterval, c.ReconcileInterval)
	setDuration(&config.AgentCacheTTL, c.AgentCacheTTL)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
