// Package formula is the restricted expression language behind conversion
// rules: numeric literals, declared variables, + - * /, parentheses and the
// min/max/round builtins. Evaluation is pure and deterministic; rules are
// compiled once and cached, never run through any dynamic code path.
package formula

import (
	"fmt"
	"sort"
)

type ErrorKind string

const (
	KindSyntax          ErrorKind = "SYNTAX_ERROR"
	KindUnknownVariable ErrorKind = "UNKNOWN_VARIABLE"
	KindDivisionByZero  ErrorKind = "DIVISION_BY_ZERO"
)

type Error struct {
	Kind ErrorKind
	Pos  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func syntaxErr(pos int, msg string) *Error {
	return &Error{Kind: KindSyntax, Pos: pos, Msg: msg}
}

// Compiled is a parsed formula ready for repeated evaluation.
type Compiled struct {
	src  string
	root expr
	vars []string
}

// Compile parses src into an AST. A SYNTAX_ERROR is returned for anything
// outside the restricted grammar.
func Compile(src string) (*Compiled, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, syntaxErr(p.peek().pos, fmt.Sprintf("unexpected %q", p.peek().text))
	}
	seen := map[string]bool{}
	collectVars(root, seen)
	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return &Compiled{src: src, root: root, vars: vars}, nil
}

// Eval computes the formula against the given variable bindings.
func (c *Compiled) Eval(vars map[string]float64) (float64, error) {
	return c.root.eval(vars)
}

// Variables lists every identifier the formula references, sorted.
func (c *Compiled) Variables() []string {
	out := make([]string, len(c.vars))
	copy(out, c.vars)
	return out
}

func (c *Compiled) Source() string { return c.src }
