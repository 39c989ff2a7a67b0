package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrischeng-c4/rusheet-sub000/internal/bookfile"
	"github.com/chrischeng-c4/rusheet-sub000/internal/formula"
	"github.com/chrischeng-c4/rusheet-sub000/internal/sheet"
)

func newEvalCmd(a *app) *cobra.Command {
	var (
		sets      []string
		file      string
		sheetName string
	)
	cmd := &cobra.Command{
		Use:   "eval [flags] FORMULA",
		Short: "Evaluate a single formula",
		Long: `Eval parses a formula and prints its value. Cells it reads come from
--set assignments, a workbook file given with --file, or both.`,
		Example: `  rusheet eval '=1+2*3'
  rusheet eval --set A1=4 --set 'A2==A1^2' '=SUM(A1:A2)'
  rusheet eval --file book.toml --sheet Budget '=B2/12'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.evalWorkbook(file)
			if err != nil {
				return err
			}
			s, err := pickSheet(wb, sheetName)
			if err != nil {
				return err
			}
			if err := applySets(s, sets); err != nil {
				return err
			}

			text := args[0]
			if limit := a.cfg.Engine.MaxFormulaLength; len(text) > limit {
				return fmt.Errorf("%w: %d bytes, limit %d", sheet.ErrFormulaTooLong, len(text), limit)
			}
			expr, err := formula.Parse(text)
			if err != nil {
				return err
			}
			v := s.Evaluate(expr)
			fmt.Fprintln(cmd.OutOrStdout(), paintValue(v, displayValue(v)))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a cell first, as REF=input (repeatable)")
	cmd.Flags().StringVar(&file, "file", "", "workbook definition to evaluate against")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "sheet the formula runs on (default: first sheet)")
	return cmd
}

func (a *app) evalWorkbook(file string) (*sheet.Workbook, error) {
	if file != "" {
		return bookfile.Load(file, a.workbookOptions()...)
	}
	wb := sheet.NewWorkbook(a.workbookOptions()...)
	if _, err := wb.AddSheet("Sheet1"); err != nil {
		return nil, err
	}
	return wb, nil
}

// applySets stores REF=input assignments in one batch. the first '='
// separates the reference, so "B1==A1*2" stores a formula.
func applySets(s *sheet.Sheet, sets []string) error {
	if len(sets) == 0 {
		return nil
	}
	return s.Workbook().Batch(func() error {
		for _, assignment := range sets {
			ref, input, ok := strings.Cut(assignment, "=")
			if !ok {
				return fmt.Errorf("--set %q: want REF=input", assignment)
			}
			if err := s.SetA1(strings.TrimSpace(ref), input); err != nil {
				return fmt.Errorf("--set %q: %w", assignment, err)
			}
		}
		return nil
	})
}
