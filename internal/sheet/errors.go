package sheet

import "errors"

// API misuse is reported with these; problems inside formulas are never Go
// errors but error values stored in the cell.
var (
	ErrSheetNotFound    = errors.New("sheet: no such sheet")
	ErrSheetExists      = errors.New("sheet: sheet name already in use")
	ErrInvalidSheetName = errors.New("sheet: invalid sheet name")
	ErrOutOfBounds      = errors.New("sheet: coordinate out of bounds")
	ErrFormulaTooLong   = errors.New("sheet: formula too long")
	ErrInvalidName      = errors.New("sheet: invalid defined name")
	ErrNameNotFound     = errors.New("sheet: no such defined name")
	ErrNameExists       = errors.New("sheet: defined name already in use")
)
