// Package config loads memectl settings: defaults, an optional JSON file
// (-c), MEMECTL_ADDR / MEMECTL_TOKEN and global flags.
package config
