// Package config provides configuration management for the tilebridge host.
// It uses Viper for loading, with support for:
// - JSON, YAML and TOML files
// - TILEBRIDGE_* environment overrides
// - Hot-reload of the tiling section exposed to scripts
package config

import (
	"os"
	"path/filepath"
)

// Config represents the complete tilebridge configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" json:"logger" yaml:"logger"`
	State   StateConfig   `mapstructure:"state" json:"state" yaml:"state"`
	Redis   RedisConfig   `mapstructure:"redis" json:"redis" yaml:"redis"`
	Gateway GatewayConfig `mapstructure:"gateway" json:"gateway" yaml:"gateway"`
	Tiling  TilingConfig  `mapstructure:"tiling" json:"tiling" yaml:"tiling"`
}

// LoggerConfig mirrors logger.Config in file form.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level" yaml:"level"`
	OutputPath  string `mapstructure:"output_path" json:"output_path" yaml:"output_path"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress" yaml:"compress"`
	Development bool   `mapstructure:"development" json:"development" yaml:"development"`
}

// StateConfig selects and tunes the backing store of the bridge.
type StateConfig struct {
	// Backend is one of memory, file, redis, sqlite.
	Backend string `mapstructure:"backend" json:"backend" yaml:"backend"`

	FilePath      string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`
	AutoSave      bool   `mapstructure:"auto_save" json:"auto_save" yaml:"auto_save"`
	SaveIntervalS int    `mapstructure:"save_interval_s" json:"save_interval_s" yaml:"save_interval_s"`

	SQLitePath string `mapstructure:"sqlite_path" json:"sqlite_path" yaml:"sqlite_path"`

	// Prefix namespaces all redis keys of this host.
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`

	// OpTimeoutMS bounds a single bridge call against a remote backend.
	OpTimeoutMS int `mapstructure:"op_timeout_ms" json:"op_timeout_ms" yaml:"op_timeout_ms"`

	// SnapshotSchedule is a cron spec (e.g. "@every 10m"). Empty disables snapshots.
	SnapshotSchedule string `mapstructure:"snapshot_schedule" json:"snapshot_schedule" yaml:"snapshot_schedule"`
	SnapshotPath     string `mapstructure:"snapshot_path" json:"snapshot_path" yaml:"snapshot_path"`
}

// RedisConfig is the shared redis connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr" yaml:"addr"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
	DB       int    `mapstructure:"db" json:"db" yaml:"db"`
}

// GatewayConfig for the script gateway server. Port 0 disables it.
type GatewayConfig struct {
	Host   string `mapstructure:"host" json:"host" yaml:"host"`
	Port   int    `mapstructure:"port" json:"port" yaml:"port"`
	Secret string `mapstructure:"secret" json:"secret" yaml:"secret"`
}

// TilingConfig is the native tiling configuration scripts read through jsConfig.
type TilingConfig struct {
	EnabledLayouts []string `mapstructure:"enabled_layouts" json:"enabled_layouts" yaml:"enabled_layouts"`

	LayoutGap       int `mapstructure:"layout_gap" json:"layout_gap" yaml:"layout_gap"`
	ScreenGapLeft   int `mapstructure:"screen_gap_left" json:"screen_gap_left" yaml:"screen_gap_left"`
	ScreenGapRight  int `mapstructure:"screen_gap_right" json:"screen_gap_right" yaml:"screen_gap_right"`
	ScreenGapTop    int `mapstructure:"screen_gap_top" json:"screen_gap_top" yaml:"screen_gap_top"`
	ScreenGapBottom int `mapstructure:"screen_gap_bottom" json:"screen_gap_bottom" yaml:"screen_gap_bottom"`

	MaximizeSoleTile    bool `mapstructure:"maximize_sole_tile" json:"maximize_sole_tile" yaml:"maximize_sole_tile"`
	MonocleMinimizeRest bool `mapstructure:"monocle_minimize_rest" json:"monocle_minimize_rest" yaml:"monocle_minimize_rest"`
	KeepFloatingAbove   bool `mapstructure:"keep_floating_above" json:"keep_floating_above" yaml:"keep_floating_above"`
	UntileByDragging    bool `mapstructure:"untile_by_dragging" json:"untile_by_dragging" yaml:"untile_by_dragging"`
	NewWindowAsMaster   bool `mapstructure:"new_window_as_master" json:"new_window_as_master" yaml:"new_window_as_master"`
	PreventMinimization bool `mapstructure:"prevent_minimization" json:"prevent_minimization" yaml:"prevent_minimization"`
	PreventProtrusion   bool `mapstructure:"prevent_protrusion" json:"prevent_protrusion" yaml:"prevent_protrusion"`
	NoTileBorder        bool `mapstructure:"no_tile_border" json:"no_tile_border" yaml:"no_tile_border"`

	FloatingClass  []string `mapstructure:"floating_class" json:"floating_class" yaml:"floating_class"`
	IgnoreClass    []string `mapstructure:"ignore_class" json:"ignore_class" yaml:"ignore_class"`
	IgnoreTitle    []string `mapstructure:"ignore_title" json:"ignore_title" yaml:"ignore_title"`
	IgnoreRole     []string `mapstructure:"ignore_role" json:"ignore_role" yaml:"ignore_role"`
	IgnoreScreen   []int    `mapstructure:"ignore_screen" json:"ignore_screen" yaml:"ignore_screen"`
	IgnoreActivity []string `mapstructure:"ignore_activity" json:"ignore_activity" yaml:"ignore_activity"`
}

// KnownLayouts lists the layout ids accepted in tiling.enabled_layouts, in
// their default cycling order.
var KnownLayouts = []string{
	"tile", "monocle", "three_column", "spread", "stair", "spiral", "quarter", "floating",
}

// State backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	home := Home()

	return &Config{
		Logger: LoggerConfig{
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		State: StateConfig{
			Backend:       BackendMemory,
			FilePath:      filepath.Join(home, "state.json"),
			AutoSave:      true,
			SaveIntervalS: 5,
			SQLitePath:    filepath.Join(home, "state.db"),
			Prefix:        "tilebridge:",
			OpTimeoutMS:   250,
			SnapshotPath:  filepath.Join(home, "snapshots", "state.json"),
		},
		Redis: RedisConfig{},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 0,
		},
		Tiling: TilingConfig{
			EnabledLayouts:    []string{"tile", "monocle", "three_column", "spread", "stair", "spiral", "quarter", "floating"},
			LayoutGap:         0,
			MaximizeSoleTile:  false,
			KeepFloatingAbove: true,
			UntileByDragging:  true,
			PreventProtrusion: true,
			NoTileBorder:      false,
			FloatingClass:     []string{},
			IgnoreClass:       []string{"krunner", "yakuake", "spectacle", "kded5", "xwaylandvideobridge"},
			IgnoreTitle:       []string{},
			IgnoreRole:        []string{"quake"},
			IgnoreScreen:      []int{},
			IgnoreActivity:    []string{},
		},
	}
}

// Home returns the tilebridge home directory (~/.tilebridge).
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tilebridge"
	}
	return filepath.Join(home, ".tilebridge")
}

// Snapshot returns the tiling configuration as a fresh map keyed the way
// scripts expect (camelCase). Mutating the result never reaches c.
func (t TilingConfig) Snapshot() map[string]any {
	return map[string]any{
		"enabledLayouts":      cloneStrings(t.EnabledLayouts),
		"layoutGap":           t.LayoutGap,
		"screenGapLeft":       t.ScreenGapLeft,
		"screenGapRight":      t.ScreenGapRight,
		"screenGapTop":        t.ScreenGapTop,
		"screenGapBottom":     t.ScreenGapBottom,
		"maximizeSoleTile":    t.MaximizeSoleTile,
		"monocleMinimizeRest": t.MonocleMinimizeRest,
		"keepFloatingAbove":   t.KeepFloatingAbove,
		"untileByDragging":    t.UntileByDragging,
		"newWindowAsMaster":   t.NewWindowAsMaster,
		"preventMinimization": t.PreventMinimization,
		"preventProtrusion":   t.PreventProtrusion,
		"noTileBorder":        t.NoTileBorder,
		"floatingClass":       cloneStrings(t.FloatingClass),
		"ignoreClass":         cloneStrings(t.IgnoreClass),
		"ignoreTitle":         cloneStrings(t.IgnoreTitle),
		"ignoreRole":          cloneStrings(t.IgnoreRole),
		"ignoreScreen":        append([]int{}, t.IgnoreScreen...),
		"ignoreActivity":      cloneStrings(t.IgnoreActivity),
	}
}

func cloneStrings(in []string) []string {
	return append([]string{}, in...)
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return home
}

// normalizePaths expands ~ in every path-like field.
func (c *Config) normalizePaths() {
	c.Logger.OutputPath = expandPath(c.Logger.OutputPath)
	c.State.FilePath = expandPath(c.State.FilePath)
	c.State.SQLitePath = expandPath(c.State.SQLitePath)
	c.State.SnapshotPath = expandPath(c.State.SnapshotPath)
}
