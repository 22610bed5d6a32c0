package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/memeforge/internal/flagx"
	"github.com/dmitrijs2005/memeforge/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	TokenTTL           timex.Duration `json:"token_ttl"`
	Timeout            timex.Duration `json:"timeout"`
}

// parseJson overlays cfg with the file named by -c/-config, if any.
// Absent fields keep their current values.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.TokenTTL.Duration > 0 {
		cfg.TokenTTL = jc.TokenTTL.Duration
	}
	if jc.Timeout.Duration > 0 {
		cfg.Timeout = jc.Timeout.Duration
	}
	return nil
}
