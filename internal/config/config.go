// Package config resolves runtime settings from environment variables and
// flag overrides via viper.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPort          = 3333
	DefaultHost          = "127.0.0.1"
	DefaultWatchInterval = time.Second

	// DBFileName is the store file inside the project directory.
	DBFileName = "tasks.db"

	// BoardFileName is the generated kanban board.
	BoardFileName = "kanban.html"

	// SnapshotFileName is the exported JSON snapshot.
	SnapshotFileName = "snapshot.json"
)

// Config holds all runtime settings. It is constructed once at startup and
// passed down; nothing reads process-global mutable state after load.
type Config struct {
	Dir           string        `json:"dir"`
	DBPath        string        `json:"db_path"`
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	WatchInterval time.Duration `json:"watch_interval"`
	NoColor       bool          `json:"no_color"`
	JSON          bool          `json:"json"`
	Quiet         bool          `json:"quiet"`
	Actor         string        `json:"actor"`
}

// Load reads OHNO_* environment variables with defaults. Flag values are
// applied on top by the CLI after parsing.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OHNO")
	v.AutomaticEnv()

	v.SetDefault("port", DefaultPort)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("watch_interval", 1.0)

	port := v.GetInt("port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid OHNO_PORT: %d", port)
	}

	interval := v.GetFloat64("watch_interval")
	if interval <= 0 {
		return nil, fmt.Errorf("invalid OHNO_WATCH_INTERVAL: %v", interval)
	}

	cfg := &Config{
		Dir:           v.GetString("dir"),
		DBPath:        v.GetString("db_path"),
		Host:          v.GetString("host"),
		Port:          port,
		WatchInterval: time.Duration(interval * float64(time.Second)),
		NoColor:       v.GetBool("no_color"),
	}

	// Honor the NO_COLOR convention alongside OHNO_NO_COLOR.
	if os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}

	return cfg, nil
}

// Addr returns the host:port the serve command listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
