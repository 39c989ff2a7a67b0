package cell

// ContentKind distinguishes literal cells from formula cells.
type ContentKind uint8

const (
	ContentLiteral ContentKind = iota
	ContentFormula
)

// Content is what a sheet stores per occupied cell. Readers always see
// Value: the literal itself, or the cached result of the last
// recalculation for a formula.
type Content struct {
	Kind  ContentKind
	Value Value
	// Input is the text the user typed for a literal (optional) or the
	// formula source including the leading '='.
	Input string
}

func Literal(v Value, input string) Content {
	return Content{Kind: ContentLiteral, Value: v, Input: input}
}

func Formula(source string, cached Value) Content {
	return Content{Kind: ContentFormula, Value: cached, Input: source}
}

func (c Content) IsFormula() bool {
	return c.Kind == ContentFormula
}

// EditText is the text to present when the cell is edited again.
func (c Content) EditText() string {
	if c.Input != "" {
		return c.Input
	}
	return c.Value.String()
}
