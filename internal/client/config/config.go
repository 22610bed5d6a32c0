package config

import (
	"os"
	"time"
)

const (
	envServerAddr = "MEMECTL_ADDR"
	envToken      = "MEMECTL_TOKEN"
)

// Config holds runtime settings for memectl.
//
// Fields:
//   - ServerEndpointAddr: host:port of the ops gRPC endpoint.
//   - Token: operator JWT sent with every call.
//   - TokenTTL: validity of tokens minted by the token command.
//   - Timeout: deadline for one remote call.
type Config struct {
	ServerEndpointAddr string
	Token              string
	TokenTTL           time.Duration
	Timeout            time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.TokenTTL = time.Hour
	c.Timeout = 90 * time.Second
}

// LoadConfig builds a Config from defaults, an optional JSON file, the
// environment and global flags, in that order, and returns the arguments
// left after the global flags.
func LoadConfig() (*Config, []string, error) {
	return load(os.Args[1:], os.LookupEnv)
}

func load(args []string, lookupEnv func(string) (string, bool)) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, nil, err
	}
	if v, ok := lookupEnv(envServerAddr); ok && v != "" {
		cfg.ServerEndpointAddr = v
	}
	if v, ok := lookupEnv(envToken); ok && v != "" {
		cfg.Token = v
	}

	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}
	return cfg, rest, nil
}
