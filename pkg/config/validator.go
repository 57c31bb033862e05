package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"tilebridge/pkg/logger"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for _, err := range e {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = nil

	v.validateLogger(&cfg.Logger)
	v.validateState(&cfg.State, &cfg.Redis)
	v.validateGateway(&cfg.Gateway)
	v.validateTiling(&cfg.Tiling)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) validateLogger(cfg *LoggerConfig) {
	if _, err := logger.ParseLevel(logger.Level(cfg.Level)); err != nil {
		v.addError("logger.level", "level must be one of: debug, info, warn, error")
	}
	if cfg.OutputPath != "" && cfg.MaxSize < 1 {
		v.addError("logger.max_size", "max_size must be at least 1 when output_path is set")
	}
}

func (v *Validator) validateState(cfg *StateConfig, redis *RedisConfig) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendMemory:
	case BackendFile:
		if cfg.FilePath == "" {
			v.addError("state.file_path", "file_path is required for the file backend")
		}
		if cfg.AutoSave && cfg.SaveIntervalS < 1 {
			v.addError("state.save_interval_s", "save_interval_s must be at least 1 when auto_save is enabled")
		}
	case BackendRedis:
		if redis.Addr == "" {
			v.addError("redis.addr", "addr is required for the redis backend")
		}
		if redis.DB < 0 {
			v.addError("redis.db", "db must be non-negative")
		}
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			v.addError("state.sqlite_path", "sqlite_path is required for the sqlite backend")
		}
	default:
		v.addError("state.backend", "backend must be one of: memory, file, redis, sqlite")
	}

	if cfg.OpTimeoutMS < 0 {
		v.addError("state.op_timeout_ms", "op_timeout_ms must be non-negative")
	}

	if cfg.SnapshotSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SnapshotSchedule); err != nil {
			v.addError("state.snapshot_schedule", fmt.Sprintf("invalid cron schedule: %v", err))
		}
		if cfg.SnapshotPath == "" {
			v.addError("state.snapshot_path", "snapshot_path is required when snapshot_schedule is set")
		}
	}
}

func (v *Validator) validateGateway(cfg *GatewayConfig) {
	if cfg.Port == 0 {
		return
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		v.addError("gateway.port", "port must be between 1 and 65535, or 0 to disable")
	}
	if cfg.Host == "" {
		v.addError("gateway.host", "host is required when the gateway is enabled")
	}
}

func (v *Validator) validateTiling(cfg *TilingConfig) {
	if len(cfg.EnabledLayouts) == 0 {
		v.addError("tiling.enabled_layouts", "at least one layout must be enabled")
	}
	seen := make(map[string]bool, len(cfg.EnabledLayouts))
	for i, id := range cfg.EnabledLayouts {
		field := fmt.Sprintf("tiling.enabled_layouts[%d]", i)
		if !slices.Contains(KnownLayouts, id) {
			v.addError(field, fmt.Sprintf("unknown layout %q", id))
		}
		if seen[id] {
			v.addError(field, fmt.Sprintf("layout %q listed twice", id))
		}
		seen[id] = true
	}

	gaps := map[string]int{
		"tiling.layout_gap":        cfg.LayoutGap,
		"tiling.screen_gap_left":   cfg.ScreenGapLeft,
		"tiling.screen_gap_right":  cfg.ScreenGapRight,
		"tiling.screen_gap_top":    cfg.ScreenGapTop,
		"tiling.screen_gap_bottom": cfg.ScreenGapBottom,
	}
	for field, gap := range gaps {
		if gap < 0 {
			v.addError(field, "gap must be non-negative")
		}
	}

	for i, screen := range cfg.IgnoreScreen {
		if screen < 0 {
			v.addError(fmt.Sprintf("tiling.ignore_screen[%d]", i), "screen index must be non-negative")
		}
	}
}

// addError adds a validation error.
func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// ValidateConfig is a convenience function to validate a configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
