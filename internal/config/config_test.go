package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rusheet.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestEngineWithDefaults(t *testing.T) {
	got := Engine{DefaultColWidth: 64, MaxRangeCells: 10, MaxFormulaLength: -1, EagerConditionals: true}.WithDefaults()
	want := Engine{
		DefaultRowHeight:  DefaultRowHeight,
		DefaultColWidth:   64,
		MaxFormulaLength:  DefaultMaxFormulaLength,
		MaxRangeCells:     10,
		EagerConditionals: true,
	}
	if got != want {
		t.Errorf("WithDefaults() = %+v, want %+v", got, want)
	}
	if zero := (Engine{}).WithDefaults(); zero != Default().Engine {
		t.Errorf("zero engine = %+v, want defaults", zero)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[engine]
default_col_width = 64.0
eager_conditionals = true

[log]
level = "debug"
format = "json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.DefaultColWidth != 64 {
		t.Errorf("DefaultColWidth = %v, want 64", cfg.Engine.DefaultColWidth)
	}
	if cfg.Engine.DefaultRowHeight != DefaultRowHeight {
		t.Errorf("DefaultRowHeight = %v, want default %v", cfg.Engine.DefaultRowHeight, DefaultRowHeight)
	}
	if !cfg.Engine.EagerConditionals {
		t.Error("EagerConditionals not set")
	}
	if cfg.Engine.MaxRangeCells != DefaultMaxRangeCells {
		t.Errorf("MaxRangeCells = %d", cfg.Engine.MaxRangeCells)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, %v", level, err)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative width", "[engine]\ndefault_col_width = -1.0\n"},
		{"zero formula length", "[engine]\nmax_formula_length = 0\n"},
		{"unknown level", "[log]\nlevel = \"loud\"\n"},
		{"unknown format", "[log]\nformat = \"xml\"\n"},
		{"unknown color", "[cli]\ncolor = \"sometimes\"\n"},
		{"unknown key", "[engine]\nrow_height = 10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadSyntaxError(t *testing.T) {
	path := writeFile(t, "[engine\n")
	if _, err := Load(path); err == nil || errors.Is(err, ErrInvalid) {
		t.Fatalf("Load = %v, want a parse error", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load = %v, want os.ErrNotExist", err)
	}
}
