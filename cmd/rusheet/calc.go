package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chrischeng-c4/rusheet-sub000/internal/bookfile"
	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/sheet"
	"github.com/chrischeng-c4/rusheet-sub000/internal/snapshot"
)

type calcOptions struct {
	format string
	save   string
	strict bool
	jobs   int
}

type calcResult struct {
	path string
	wb   *sheet.Workbook
}

func newCalcCmd(a *app) *cobra.Command {
	var opts calcOptions
	cmd := &cobra.Command{
		Use:   "calc [flags] FILE...",
		Short: "Recalculate workbook definition files",
		Long: `Calc loads each workbook definition, recalculates it and prints every
occupied cell. Files are independent and are processed in parallel.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case "table", "json":
			default:
				return fmt.Errorf("unsupported format %q (must be table or json)", opts.format)
			}
			if opts.save != "" && len(args) != 1 {
				return errors.New("--save needs exactly one input file")
			}
			if !cmd.Flags().Changed("jobs") {
				opts.jobs = a.cfg.CLI.Jobs
			}

			results, err := a.calcFiles(cmd, args, opts)
			if err != nil {
				return err
			}
			if opts.save != "" {
				if err := snapshot.Save(opts.save, results[0].wb); err != nil {
					return err
				}
				a.log.Info("snapshot saved", "path", opts.save)
			}
			if opts.format == "json" {
				return renderCalcJSON(cmd.OutOrStdout(), results)
			}
			renderCalcTable(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "table", "output format (table|json)")
	cmd.Flags().StringVar(&opts.save, "save", "", "write a binary snapshot of the workbook to this path")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail when a workbook contains a circular reference")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "files to process at once (default from config)")
	return cmd
}

// calcFiles loads every file, at most opts.jobs at a time. results keep
// the order of paths.
func (a *app) calcFiles(cmd *cobra.Command, paths []string, opts calcOptions) ([]calcResult, error) {
	jobs := opts.jobs
	if jobs <= 0 {
		jobs = 1
	}
	results := make([]calcResult, len(paths))

	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(min(jobs, len(paths)))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			wb, err := bookfile.Load(path, a.workbookOptions()...)
			if err != nil {
				return err
			}
			if opts.strict {
				if err := wb.CheckCircular(); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			a.log.Debug("workbook loaded", "path", path, "sheets", len(wb.Sheets()), "formulas", wb.FormulaCount())
			results[i] = calcResult{path: path, wb: wb}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func renderCalcTable(out io.Writer, results []calcResult) {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		for _, s := range r.wb.Sheets() {
			fmt.Fprintln(out, headerColor.Sprintf("%s!%s", r.path, s.Name()))
			entries := s.Entries()
			refWidth := 0
			for _, e := range entries {
				refWidth = max(refWidth, runewidth.StringWidth(cell.FormatA1(e.Coord)))
			}
			for _, e := range entries {
				ref := fit(cell.FormatA1(e.Coord), refWidth, false)
				v := e.Value.Value
				line := "  " + ref + "  " + paintValue(v, displayValue(v))
				if e.Value.IsFormula() {
					line += "  " + formulaColor.Sprint(e.Value.Input)
				}
				fmt.Fprintln(out, line)
			}
		}
	}
}

type calcFileJSON struct {
	File   string          `json:"file"`
	Sheets []calcSheetJSON `json:"sheets"`
}

type calcSheetJSON struct {
	Name  string         `json:"name"`
	Cells []calcCellJSON `json:"cells"`
}

type calcCellJSON struct {
	Ref     string `json:"ref"`
	Value   any    `json:"value"`
	Formula string `json:"formula,omitempty"`
}

func renderCalcJSON(out io.Writer, results []calcResult) error {
	payload := make([]calcFileJSON, 0, len(results))
	for _, r := range results {
		f := calcFileJSON{File: r.path, Sheets: []calcSheetJSON{}}
		for _, s := range r.wb.Sheets() {
			sj := calcSheetJSON{Name: s.Name(), Cells: []calcCellJSON{}}
			for _, e := range s.Entries() {
				c := calcCellJSON{Ref: cell.FormatA1(e.Coord), Value: jsonValue(e.Value.Value)}
				if e.Value.IsFormula() {
					c.Formula = e.Value.Input
				}
				sj.Cells = append(sj.Cells, c)
			}
			f.Sheets = append(f.Sheets, sj)
		}
		payload = append(payload, f)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
