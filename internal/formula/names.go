package formula

import "strings"

// IsValidName reports whether s can be used as a defined name. a name must
// lex as one identifier that does not look like a cell reference, so
// TaxRate and q1.total are valid while B2, XFE1 and TRUE are not.
func IsValidName(s string) bool {
	if s == "" || referenceShaped(s) {
		return false
	}
	toks, err := NewLexer(s).Tokenize()
	if err != nil || len(toks) != 2 {
		return false
	}
	return toks[0].Type == TokenIdentifier && toks[0].Value == s
}

// referenceShaped reports whether s is a letter run followed by a digit
// run, with or without being inside the sheet bounds.
func referenceShaped(s string) bool {
	i := 0
	for i < len(s) && isAlpha(rune(s[i])) {
		i++
	}
	if i == 0 || i == len(s) {
		return false
	}
	return strings.TrimLeft(s[i:], "0123456789") == ""
}

// Names returns the defined names e uses, in source order, each once.
// names compare case-insensitively; the first spelling wins.
func Names(e Expr) []string {
	var out []string
	seen := make(map[string]struct{})
	Walk(e, func(node Expr) bool {
		if n, ok := node.(*NameNode); ok {
			key := strings.ToUpper(n.Name)
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				out = append(out, n.Name)
			}
		}
		return true
	})
	return out
}

// RenameName rewrites uses of the defined name from (compared
// case-insensitively) to to.
func RenameName(e Expr, from, to string) (out Expr, changed bool) {
	return replaceLeaves(e, func(e Expr) (Expr, bool) {
		n, ok := e.(*NameNode)
		if !ok || !strings.EqualFold(n.Name, from) {
			return e, false
		}
		return &NameNode{Name: to}, true
	})
}
