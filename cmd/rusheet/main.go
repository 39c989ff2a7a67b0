package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chrischeng-c4/rusheet-sub000/internal/config"
	"github.com/chrischeng-c4/rusheet-sub000/internal/sheet"
	"github.com/chrischeng-c4/rusheet-sub000/internal/version"
)

// app carries the settings resolved by the root command to its
// subcommands.
type app struct {
	cfg   config.Config
	log   *slog.Logger
	color bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default(), log: slog.New(slog.DiscardHandler)}
	root := &cobra.Command{
		Use:          "rusheet",
		Short:        "Spreadsheet engine command line",
		Long:         `rusheet evaluates formulas and recalculates workbook files`,
		Version:      version.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "path to a rusheet.toml settings file")
	root.PersistentFlags().String("color", "", "colorize output (auto|always|never)")
	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")

	root.AddCommand(
		newEvalCmd(a),
		newCalcCmd(a),
		newShiftCmd(a),
		newShowCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads the config file and applies the flag overrides on top.
func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()

	path, err := flags.GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if flags.Changed("color") {
		a.cfg.CLI.Color, _ = flags.GetString("color")
	}
	if flags.Changed("log-level") {
		a.cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.log, err = newLogger(cmd.ErrOrStderr(), a.cfg.Log)
	if err != nil {
		return err
	}
	a.color = useColor(a.cfg.CLI.Color, cmd.OutOrStdout())
	color.NoColor = !a.color
	return nil
}

func newLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func useColor(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(out)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) workbookOptions() []sheet.Option {
	return []sheet.Option{
		sheet.WithLogger(a.log),
		sheet.WithEngine(a.cfg.Engine),
	}
}
