package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chrischeng-c4/rusheet-sub000/internal/bookfile"
	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/sheet"
	"github.com/chrischeng-c4/rusheet-sub000/internal/spatial"
)

const (
	defaultViewWidth = 120
	maxColumnWidth   = 24
	columnGap        = 2
)

type showOptions struct {
	sheet    string
	width    int
	formulas bool
	deps     string
}

func newShowCmd(a *app) *cobra.Command {
	var opts showOptions
	cmd := &cobra.Command{
		Use:   "show [flags] FILE",
		Short: "Print a sheet as a grid",
		Long: `Show recalculates a workbook definition and prints one sheet as a grid,
keeping as many columns as fit the terminal. Hidden rows and columns are
skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := bookfile.Load(args[0], a.workbookOptions()...)
			if err != nil {
				return err
			}
			s, err := pickSheet(wb, opts.sheet)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.deps != "" {
				return printDeps(out, s, opts.deps)
			}
			width := opts.width
			if width <= 0 {
				width = viewWidth(out)
			}
			return printGrid(out, s, width, opts.formulas)
		},
	}
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "sheet to print (default: first sheet)")
	cmd.Flags().IntVarP(&opts.width, "width", "w", 0, "output width in columns (default: terminal width)")
	cmd.Flags().BoolVar(&opts.formulas, "formulas", false, "show formula text instead of values")
	cmd.Flags().StringVar(&opts.deps, "deps", "", "list what the given cell reads and what reads it")
	return cmd
}

func viewWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultViewWidth
}

type gridCell struct {
	text  string
	value cell.Value
}

// printGrid lays the occupied rectangle of s out on a spatial axis whose
// sizes are the display widths of each column, then prints the columns
// that fit in width.
func printGrid(out io.Writer, s *sheet.Sheet, width int, formulas bool) error {
	last, ok := s.Bounds()
	if !ok {
		fmt.Fprintln(out, dimColor.Sprint("(empty sheet)"))
		return nil
	}

	layout := s.Layout()
	cells := make(map[cell.Coord]gridCell)
	widths := make([]int, last.Col+1)
	for col := uint32(0); col <= last.Col; col++ {
		widths[col] = runewidth.StringWidth(cell.ColumnName(col))
	}
	for _, e := range s.Entries() {
		if layout.Rows.IsHidden(e.Coord.Row) {
			continue
		}
		text := displayValue(e.Value.Value)
		if formulas && e.Value.IsFormula() {
			text = e.Value.Input
		}
		cells[e.Coord] = gridCell{text: text, value: e.Value.Value}
		widths[e.Coord.Col] = max(widths[e.Coord.Col], min(runewidth.StringWidth(text), maxColumnWidth))
	}

	cols := spatial.NewAxis(last.Col+1, 1)
	for col := uint32(0); col <= last.Col; col++ {
		if err := cols.SetSize(col, float64(widths[col]+columnGap)); err != nil {
			return err
		}
		if layout.Cols.IsHidden(col) {
			if err := cols.Hide(col); err != nil {
				return err
			}
		}
	}

	labelWidth := len(strconv.FormatUint(uint64(last.Row)+1, 10))
	avail := float64(max(width-labelWidth, 1))
	first, lastCol := cols.Visible(0, avail)
	for lastCol > first && cols.OffsetOf(lastCol)+cols.EffectiveSize(lastCol) > avail {
		lastCol--
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", labelWidth))
	for col := first; col <= lastCol; col++ {
		if cols.IsHidden(col) {
			continue
		}
		sb.WriteString(strings.Repeat(" ", columnGap))
		sb.WriteString(headerColor.Sprint(fit(cell.ColumnName(col), widths[col], false)))
	}
	fmt.Fprintln(out, strings.TrimRight(sb.String(), " "))

	for row := uint32(0); row <= last.Row; row++ {
		if layout.Rows.IsHidden(row) {
			continue
		}
		sb.Reset()
		sb.WriteString(dimColor.Sprint(fit(strconv.FormatUint(uint64(row)+1, 10), labelWidth, true)))
		for col := first; col <= lastCol; col++ {
			if cols.IsHidden(col) {
				continue
			}
			sb.WriteString(strings.Repeat(" ", columnGap))
			gc := cells[cell.At(row, col)]
			right := gc.value.Kind() == cell.KindNumber
			sb.WriteString(paintValue(gc.value, fit(gc.text, widths[col], right)))
		}
		fmt.Fprintln(out, strings.TrimRight(sb.String(), " "))
	}

	if lastCol < last.Col {
		fmt.Fprintln(out, dimColor.Sprintf("(columns %s..%s not shown)",
			cell.ColumnName(lastCol+1), cell.ColumnName(last.Col)))
	}
	return nil
}

func printDeps(out io.Writer, s *sheet.Sheet, ref string) error {
	c, err := cell.ParseA1(ref)
	if err != nil {
		return err
	}
	wb := s.Workbook()
	names := func(addrs []cell.Address) string {
		if len(addrs) == 0 {
			return dimColor.Sprint("(none)")
		}
		parts := make([]string, len(addrs))
		for i, addr := range addrs {
			parts[i] = wb.FormatAddress(addr)
		}
		return strings.Join(parts, ", ")
	}
	if content, ok := s.Content(c.Row, c.Col); ok && content.IsFormula() {
		fmt.Fprintf(out, "%s %s\n", headerColor.Sprint(ref), formulaColor.Sprint(content.Input))
	}
	fmt.Fprintf(out, "reads:   %s\n", names(s.Precedents(c.Row, c.Col)))
	fmt.Fprintf(out, "read by: %s\n", names(s.Dependents(c.Row, c.Col)))
	return nil
}
