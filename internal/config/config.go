// Package config loads engine and CLI settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid value")

const (
	DefaultRowHeight        = 21
	DefaultColWidth         = 100
	DefaultMaxFormulaLength = 8192
	DefaultMaxRangeCells    = 1_000_000
)

type Config struct {
	Engine Engine `toml:"engine"`
	Log    Log    `toml:"log"`
	CLI    CLI    `toml:"cli"`
}

// Engine tunes the workbook and evaluator.
type Engine struct {
	DefaultRowHeight  float64 `toml:"default_row_height"`
	DefaultColWidth   float64 `toml:"default_col_width"`
	MaxFormulaLength  int     `toml:"max_formula_length"`
	MaxRangeCells     uint64  `toml:"max_range_cells"`
	EagerConditionals bool    `toml:"eager_conditionals"`
}

// WithDefaults returns e with every unset or non-positive size and limit
// replaced by its default.
func (e Engine) WithDefaults() Engine {
	if e.DefaultRowHeight <= 0 {
		e.DefaultRowHeight = DefaultRowHeight
	}
	if e.DefaultColWidth <= 0 {
		e.DefaultColWidth = DefaultColWidth
	}
	if e.MaxFormulaLength <= 0 {
		e.MaxFormulaLength = DefaultMaxFormulaLength
	}
	if e.MaxRangeCells == 0 {
		e.MaxRangeCells = DefaultMaxRangeCells
	}
	return e
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type CLI struct {
	Jobs  int    `toml:"jobs"`
	Color string `toml:"color"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Engine: Engine{
			DefaultRowHeight: DefaultRowHeight,
			DefaultColWidth:  DefaultColWidth,
			MaxFormulaLength: DefaultMaxFormulaLength,
			MaxRangeCells:    DefaultMaxRangeCells,
		},
		Log: Log{Level: "info", Format: "text"},
		CLI: CLI{Jobs: runtime.NumCPU(), Color: "auto"},
	}
}

// Load reads path over the defaults. keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %s: %w", path, undecoded[0], ErrInvalid)
	}
	if meta.IsDefined("cli", "jobs") && cfg.CLI.Jobs == 0 {
		cfg.CLI.Jobs = runtime.NumCPU()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	e := c.Engine
	if !positive(e.DefaultRowHeight) {
		return fmt.Errorf("[engine].default_row_height must be positive: %w", ErrInvalid)
	}
	if !positive(e.DefaultColWidth) {
		return fmt.Errorf("[engine].default_col_width must be positive: %w", ErrInvalid)
	}
	if e.MaxFormulaLength <= 0 {
		return fmt.Errorf("[engine].max_formula_length must be positive: %w", ErrInvalid)
	}
	if e.MaxRangeCells == 0 {
		return fmt.Errorf("[engine].max_range_cells must be positive: %w", ErrInvalid)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("[log].format %q is not text or json: %w", c.Log.Format, ErrInvalid)
	}
	if c.CLI.Jobs < 0 {
		return fmt.Errorf("[cli].jobs must not be negative: %w", ErrInvalid)
	}
	switch c.CLI.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("[cli].color %q is not auto, always or never: %w", c.CLI.Color, ErrInvalid)
	}
	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// SlogLevel maps the configured level name onto slog.
func (l Log) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("[log].level %q is unknown: %w", l.Level, ErrInvalid)
}
