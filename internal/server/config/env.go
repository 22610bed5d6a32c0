package config

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	envEncryptionKey        = "MEMEFORGE_ENCRYPTION_KEY"
	envEncryptionKeyPrefix  = "MEMEFORGE_ENCRYPTION_KEY_V"
	envEncryptionKeyVersion = "MEMEFORGE_ENCRYPTION_KEY_VERSION"
	envDatabaseDSN          = "MEMEFORGE_DATABASE_DSN"
	envSecretKey            = "MEMEFORGE_SECRET_KEY"
	envHuggingFaceKey       = "HUGGINGFACE_API_KEY"
	envReplicateToken       = "REPLICATE_API_TOKEN"
)

// parseEnv reads secrets that should not live in a config file.
//
// MEMEFORGE_ENCRYPTION_KEY is key version 1; MEMEFORGE_ENCRYPTION_KEY_V<n>
// is version n. The fallback generation key is taken from the variable
// matching the configured fallback provider.
func parseEnv(config *Config, environ []string) error {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}

	for k, v := range env {
		switch {
		case k == envEncryptionKey:
			config.EncryptionKeys[1] = v
		case k == envEncryptionKeyVersion:
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", envEncryptionKeyVersion, err)
			}
			config.EncryptionKeyVersion = n
		case strings.HasPrefix(k, envEncryptionKeyPrefix):
			n, err := strconv.Atoi(strings.TrimPrefix(k, envEncryptionKeyPrefix))
			if err != nil {
				return fmt.Errorf("%s: bad key version suffix", k)
			}
			config.EncryptionKeys[n] = v
		}
	}

	setString(&config.DatabaseDSN, env[envDatabaseDSN])
	setString(&config.SecretKey, env[envSecretKey])

	switch config.FallbackProvider {
	case "huggingface":
		setString(&config.FallbackAPIKey, env[envHuggingFaceKey])
	case "replicate":
		setString(&config.FallbackAPIKey, env[envReplicateToken])
	}

	return nil
}
