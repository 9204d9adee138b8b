// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package config loads this daemon's tunables from a YAML file via
// spf13/viper, the same loader the teacher config package wraps, and
// watches the file for changes via fsnotify so a running daemon can
// pick up edits without a restart.
package config

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dtaht/hnetd/logger"
)

var log = logger.GetLogger("config")

// Config holds every tunable this daemon reads at startup or reload.
type Config struct {
	v *viper.Viper

	RouterID      string        `mapstructure:"router_id"`
	FloodingDelay time.Duration `mapstructure:"flooding_delay"`

	PALocal PALocalConfig `mapstructure:"pa_local"`
	PAPD    PAPDConfig    `mapstructure:"pa_pd"`

	Routing RoutingConfig `mapstructure:"routing"`
	IPC     IPCConfig     `mapstructure:"ipc"`
	Store   StoreConfig   `mapstructure:"store"`
}

// PALocalConfig mirrors pa.LocalConfig's tunable fields.
type PALocalConfig struct {
	UseULA             bool          `mapstructure:"use_ula"`
	NoULAIfGlobalIPv6  bool          `mapstructure:"no_ula_if_global_ipv6"`
	UseRandomULA       bool          `mapstructure:"use_random_ula"`
	RandomULAPlen      uint8         `mapstructure:"random_ula_plen"`
	ULAPrefix          string        `mapstructure:"ula_prefix"`
	UseIPv4            bool          `mapstructure:"use_ipv4"`
	NoIPv4IfGlobalIPv6 bool          `mapstructure:"no_ipv4_if_global_ipv6"`
	V4Prefix           string        `mapstructure:"v4_prefix"`
	ValidLifetime      time.Duration `mapstructure:"valid_lifetime"`
	PreferredLifetime  time.Duration `mapstructure:"preferred_lifetime"`
	UpdateDelay        time.Duration `mapstructure:"update_delay"`
}

// PAPDConfig mirrors pa.PDConfig's tunable fields.
type PAPDConfig struct {
	MinLen      uint8 `mapstructure:"min_len"`
	MinRatioExp uint8 `mapstructure:"min_ratio_exp"`
}

// RoutingConfig configures the routing election/backend component.
type RoutingConfig struct {
	Script string `mapstructure:"script"`
}

// IPCConfig configures the control-plane socket.
type IPCConfig struct {
	SocketPath string `mapstructure:"socket_path"`
}

// StoreConfig configures the persisted ULA store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// New returns a Config with the daemon's defaults pre-populated,
// mirroring pa.DefaultLocalConfig/DefaultPDConfig.
func New() *Config {
	return &Config{
		v:             viper.New(),
		FloodingDelay: 4 * time.Second,
		PALocal: PALocalConfig{
			UseULA:            true,
			NoULAIfGlobalIPv6: true,
			UseRandomULA:      true,
			RandomULAPlen:     48,
			ULAPrefix:         "fc00::/7",
			UseIPv4:           true,
			V4Prefix:          "10.0.0.0/8",
			ValidLifetime:     600 * time.Second,
			PreferredLifetime: 300 * time.Second,
			UpdateDelay:       330 * time.Second,
		},
		PAPD:  PAPDConfig{MinLen: 62, MinRatioExp: 3},
		IPC:   IPCConfig{SocketPath: "/var/run/hnetd.sock"},
		Store: StoreConfig{Path: "/var/lib/hnetd/hnetd.db"},
	}
}

// Load reads a configuration file and returns a populated Config. An
// empty pathOverride searches the same directories the teacher config
// package does.
func Load(pathOverride string) (*Config, error) {
	log.Print("loading configuration")
	c := New()
	c.v.SetConfigType("yml")
	if pathOverride != "" {
		c.v.SetConfigFile(pathOverride)
	} else {
		c.v.SetConfigName("hnetd")
		c.v.AddConfigPath(".")
		c.v.AddConfigPath("$XDG_CONFIG_HOME/hnetd/")
		c.v.AddConfigPath("$HOME/.hnetd/")
		c.v.AddConfigPath("/etc/hnetd/")
	}

	if err := c.v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := c.v.Unmarshal(c); err != nil {
		return nil, err
	}
	return c, nil
}

// WatchReload invokes onChange every time the loaded config file is
// rewritten, re-parsing it first. A failed re-parse is logged and
// dropped rather than propagated, so a momentarily-truncated write
// (editors commonly write via truncate+rewrite) does not crash the
// watcher.
func (c *Config) WatchReload(onChange func(*Config)) error {
	path := c.v.ConfigFileUsed()
	if path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			next, err := Load(path)
			if err != nil {
				log.WithError(err).Warn("config: reload failed, keeping previous config")
				continue
			}
			onChange(next)
		}
	}()
	return nil
}
