package config

import (
	"flag"
	"io"
	"time"
)

// parseFlags reads the global flags that precede the command name and
// returns the remaining arguments.
//
// Supported flags:
//
//	-a string   ops gRPC address
//	-k string   operator token
//	-w int      call timeout, seconds
//	-c string   JSON config file (read by parseJson)
func parseFlags(cfg *Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("memectl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var ignored string
	fs.StringVar(&ignored, "c", "", "config file")
	fs.StringVar(&ignored, "config", "", "config file")
	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "ops address and port")
	fs.StringVar(&cfg.Token, "k", cfg.Token, "operator token")
	timeout := fs.Int("w", int(cfg.Timeout.Seconds()), "call timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Timeout = time.Duration(*timeout) * time.Second
	return fs.Args(), nil
}
