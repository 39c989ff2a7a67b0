package sheet

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/chrischeng-c4/rusheet-sub000/internal/formula"
)

// Name is a defined name and the sheet-qualified reference it stands for,
// rendered without a leading "=". a target lost to a deletion reads #REF!.
type Name struct {
	Name string
	Ref  string
}

type definedName struct {
	name   string // spelling from the latest definition
	target formula.Expr
}

// nameTable maps defined names, compared case-insensitively, to their
// targets. formulas keep the name itself, so redefining one retargets every
// formula that uses it.
type nameTable struct {
	byKey map[string]*definedName
}

func newNameTable() *nameTable {
	return &nameTable{byKey: make(map[string]*definedName)}
}

func nameKey(name string) string {
	return strings.ToUpper(name)
}

func (nt *nameTable) define(name string, target formula.Expr) {
	nt.byKey[nameKey(name)] = &definedName{name: name, target: target}
}

func (nt *nameTable) undefine(name string) bool {
	key := nameKey(name)
	if _, ok := nt.byKey[key]; !ok {
		return false
	}
	delete(nt.byKey, key)
	return true
}

func (nt *nameTable) lookup(name string) (formula.Expr, bool) {
	d, ok := nt.byKey[nameKey(name)]
	if !ok {
		return nil, false
	}
	return d.target, true
}

// all returns the definitions sorted by key.
func (nt *nameTable) all() []*definedName {
	out := make([]*definedName, 0, len(nt.byKey))
	for _, d := range nt.byKey {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *definedName) int {
		return cmp.Compare(nameKey(a.name), nameKey(b.name))
	})
	return out
}

// rewrite replaces every target with fn's result.
func (nt *nameTable) rewrite(fn func(formula.Expr) formula.Expr) {
	for _, d := range nt.byKey {
		d.target = fn(d.target)
	}
}

// parseNameTarget accepts Sheet!A1, Sheet!A1:B2 (with or without a leading
// "=") or #REF!.
func parseNameTarget(ref string) (formula.Expr, error) {
	text := strings.TrimSpace(ref)
	if !strings.HasPrefix(text, "=") {
		text = "=" + text
	}
	expr, err := formula.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidName, ref, err)
	}
	switch n := expr.(type) {
	case *formula.SheetRefNode:
		switch n.Inner.(type) {
		case *formula.CellRefNode, *formula.RangeNode:
			return n, nil
		}
	case *formula.ErrorNode:
		return n, nil
	}
	return nil, fmt.Errorf("%w: %q is not a sheet-qualified cell or range", ErrInvalidName, ref)
}

// DefineName makes name stand for ref, replacing any earlier definition.
// ref must name its sheet; the sheet does not have to exist yet.
func (wb *Workbook) DefineName(name, ref string) error {
	if !formula.IsValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	target, err := parseNameTarget(ref)
	if err != nil {
		return err
	}
	wb.names.define(name, target)
	wb.log.Debug("name defined", "name", name, "ref", formula.Render(target))
	wb.rebuild()
	return nil
}

// UndefineName removes a defined name. formulas using it evaluate to
// #NAME? until it is defined again.
func (wb *Workbook) UndefineName(name string) error {
	if !wb.names.undefine(name) {
		return fmt.Errorf("%w: %q", ErrNameNotFound, name)
	}
	wb.log.Debug("name removed", "name", name)
	wb.rebuild()
	return nil
}

// RenameName renames a defined name and rewrites every formula that uses
// it.
func (wb *Workbook) RenameName(from, to string) error {
	target, ok := wb.names.lookup(from)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNameNotFound, from)
	}
	if !formula.IsValidName(to) {
		return fmt.Errorf("%w: %q", ErrInvalidName, to)
	}
	if nameKey(from) != nameKey(to) {
		if _, taken := wb.names.lookup(to); taken {
			return fmt.Errorf("%w: %q", ErrNameExists, to)
		}
	}
	wb.names.undefine(from)
	wb.names.define(to, target)

	rewritten := 0
	for _, s := range wb.sheets {
		for _, c := range s.formulaCells() {
			e, _ := s.cells.Get(c.Row, c.Col)
			out, changed := formula.RenameName(wb.formulas.tree(e.formula), from, to)
			if !changed {
				continue
			}
			s.replaceFormula(c, e, out)
			rewritten++
		}
	}
	wb.log.Debug("name renamed", "from", from, "to", to, "formulas", rewritten)
	wb.rebuild()
	return nil
}

// Names returns the defined names sorted case-insensitively.
func (wb *Workbook) Names() []Name {
	defs := wb.names.all()
	out := make([]Name, len(defs))
	for i, d := range defs {
		out[i] = Name{Name: d.name, Ref: strings.TrimPrefix(formula.Render(d.target), "=")}
	}
	return out
}

func (wb *Workbook) resolveName(name string) (formula.Expr, bool) {
	return wb.names.lookup(name)
}
