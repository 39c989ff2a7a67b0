package main

import (
	"fmt"
	"strconv"

	"fortio.org/safecast"
	"github.com/spf13/cobra"

	"github.com/chrischeng-c4/rusheet-sub000/internal/bookfile"
	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/sheet"
)

func newShiftCmd(a *app) *cobra.Command {
	var (
		sheetName string
		output    string
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "shift [flags] FILE rows|cols insert|delete AT [COUNT]",
		Short: "Insert or delete rows or columns in a workbook file",
		Long: `Shift applies a structural edit to one sheet of a workbook definition and
writes the result back. Formulas everywhere in the workbook are rewritten to
follow the cells they reference; references into a deleted span become #REF!.

AT is a 1-based row number for rows and column letters (or a 1-based number)
for columns. COUNT defaults to 1.`,
		Example: `  rusheet shift book.toml rows insert 3
  rusheet shift book.toml cols delete C 2 --sheet Budget`,
		Args: cobra.RangeArgs(4, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, axis, op, at := args[0], args[1], args[2], args[3]
			count := uint32(1)
			if len(args) == 5 {
				n, err := strconv.ParseUint(args[4], 10, 64)
				if err == nil {
					count, err = safecast.Conv[uint32](n)
				}
				if err != nil || count == 0 {
					return fmt.Errorf("COUNT %q must be a positive number", args[4])
				}
			}

			edit, err := structuralEdit(axis, op, at)
			if err != nil {
				return err
			}
			wb, err := bookfile.Load(path, a.workbookOptions()...)
			if err != nil {
				return err
			}
			s, err := pickSheet(wb, sheetName)
			if err != nil {
				return err
			}
			if err := edit(s, count); err != nil {
				return err
			}
			a.log.Info("shifted", "sheet", s.Name(), "axis", axis, "op", op, "at", at, "count", count)

			f, err := bookfile.FromWorkbook(wb)
			if err != nil {
				return err
			}
			if dryRun {
				return f.Encode(cmd.OutOrStdout())
			}
			if output == "" {
				output = path
			}
			return f.Write(output)
		},
	}
	cmd.Flags().StringVar(&sheetName, "sheet", "", "sheet to edit (default: first sheet)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this path instead of FILE")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the edited workbook instead of writing it")
	return cmd
}

type shiftFunc func(s *sheet.Sheet, count uint32) error

func structuralEdit(axis, op, at string) (shiftFunc, error) {
	var (
		index uint32
		ok    bool
	)
	switch axis {
	case "rows", "row":
		index, ok = parseRowArg(at)
	case "cols", "col", "columns":
		index, ok = parseColArg(at)
	default:
		return nil, fmt.Errorf("unknown axis %q (must be rows or cols)", axis)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s position %q", cell.ErrBadReference, axis, at)
	}

	rows := axis == "rows" || axis == "row"
	switch {
	case op == "insert" && rows:
		return func(s *sheet.Sheet, n uint32) error { return s.InsertRows(index, n) }, nil
	case op == "delete" && rows:
		return func(s *sheet.Sheet, n uint32) error { return s.DeleteRows(index, n) }, nil
	case op == "insert":
		return func(s *sheet.Sheet, n uint32) error { return s.InsertCols(index, n) }, nil
	case op == "delete":
		return func(s *sheet.Sheet, n uint32) error { return s.DeleteCols(index, n) }, nil
	}
	return nil, fmt.Errorf("unknown operation %q (must be insert or delete)", op)
}
