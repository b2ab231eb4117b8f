// Package config loads the daemon's JSON configuration file and applies
// environment-variable overrides, the way core/cmd's -config flag plus
// engine.Config literal construction is done, generalized to the
// PICO_TRACKER__*-style env convention used elsewhere in the corpus.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the daemon's full runtime configuration: the control-plane
// listener, one or more managed BitTorrent client slots, and the
// observe/ debug surface.
type Config struct {
	ListenNetwork string `json:"listen_network"`
	ListenAddress string `json:"listen_address"`

	NumClients        int    `json:"num_clients"`
	DownloadDirectory string `json:"download_directory"`
	IncomingPort      int    `json:"incoming_port"`
	EnableSeeding     bool   `json:"enable_seeding"`
	EnableUpload      bool   `json:"enable_upload"`

	MaxFrameBytes           uint32 `json:"max_frame_bytes"`
	ThroughputHistoryLength int    `json:"throughput_history_length"`
	ThroughputCycleMillis   int64  `json:"throughput_cycle_millis"`

	// ArchiveDirectory is where dropped BTHes get a JSON summary written,
	// one file per drop. Empty disables archiving.
	ArchiveDirectory string `json:"archive_directory"`

	// DebugAddr is the observe/ HTTP listen address. Empty disables it.
	DebugAddr string `json:"debug_addr"`
}

// Default returns the configuration used when no config file is present
// and no environment overrides apply.
func Default() Config {
	return Config{
		ListenNetwork:           "tcp",
		ListenAddress:           ":7412",
		NumClients:              1,
		DownloadDirectory:       "./downloads",
		IncomingPort:            50007,
		EnableSeeding:           true,
		EnableUpload:            true,
		MaxFrameBytes:           1 << 20,
		ThroughputHistoryLength: 1000,
		ThroughputCycleMillis:   5000,
		ArchiveDirectory:        "",
		DebugAddr:               "",
	}
}

// Load reads path as JSON over top of Default, then applies environment
// overrides, then validates. A missing file is not an error: Default
// plus environment overrides is a legitimate configuration on its own,
// matching pico-tracker's parseFlags falling back to env-derived
// defaults when nothing else is provided.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with LIASIS_* environment variables, following
// the PICO_TRACKER__*-style convention: only the four operationally
// hottest knobs get env overrides, everything else is config-file-only.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LIASIS_LISTEN"); v != "" {
		cfg.ListenAddress = v
	}
	if v := os.Getenv("LIASIS_DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDirectory = v
	}
	if v := os.Getenv("LIASIS_INCOMING_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.IncomingPort = p
		}
	}
	if v, ok := os.LookupEnv("LIASIS_DEBUG_ADDR"); ok {
		cfg.DebugAddr = v
	}
}

func (c Config) validate() error {
	if c.NumClients <= 0 {
		return fmt.Errorf("num_clients must be positive, got %d", c.NumClients)
	}
	if c.IncomingPort <= 0 {
		return fmt.Errorf("invalid incoming port (%d)", c.IncomingPort)
	}
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	if c.ThroughputHistoryLength <= 0 {
		return fmt.Errorf("throughput_history_length must be positive, got %d", c.ThroughputHistoryLength)
	}
	if c.ThroughputCycleMillis <= 0 {
		return fmt.Errorf("throughput_cycle_millis must be positive, got %d", c.ThroughputCycleMillis)
	}
	return nil
}
