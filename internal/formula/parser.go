package formula

import (
	"fmt"
	"math"
)

type expr interface {
	eval(vars map[string]float64) (float64, error)
}

type literal struct {
	val float64
}

func (l literal) eval(map[string]float64) (float64, error) { return l.val, nil }

type variable struct {
	name string
	pos  int
}

func (v variable) eval(vars map[string]float64) (float64, error) {
	val, ok := vars[v.name]
	if !ok {
		return 0, &Error{Kind: KindUnknownVariable, Pos: v.pos, Msg: v.name}
	}
	return val, nil
}

type binary struct {
	op          byte
	left, right expr
	pos         int
}

func (b binary) eval(vars map[string]float64) (float64, error) {
	l, err := b.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := b.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	default:
		if r == 0 {
			return 0, &Error{Kind: KindDivisionByZero, Pos: b.pos}
		}
		return l / r, nil
	}
}

type negate struct {
	operand expr
}

func (n negate) eval(vars map[string]float64) (float64, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

type call struct {
	fn   string
	args []expr
}

func (c call) eval(vars map[string]float64) (float64, error) {
	vals := make([]float64, len(c.args))
	for i, a := range c.args {
		v, err := a.eval(vars)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	switch c.fn {
	case "min":
		out := vals[0]
		for _, v := range vals[1:] {
			out = math.Min(out, v)
		}
		return out, nil
	case "max":
		out := vals[0]
		for _, v := range vals[1:] {
			out = math.Max(out, v)
		}
		return out, nil
	default: // round
		if len(vals) == 2 {
			scale := math.Pow(10, math.Trunc(vals[1]))
			return math.Round(vals[0]*scale) / scale, nil
		}
		return math.Round(vals[0]), nil
	}
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if p.toks[p.i].kind != tokEOF {
		p.i++
	}
	return t
}

// expr := term (('+'|'-') term)*
func (p *parser) parseExpr() (expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokPlus:
			t := p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = binary{op: '+', left: left, right: right, pos: t.pos}
		case tokMinus:
			t := p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = binary{op: '-', left: left, right: right, pos: t.pos}
		default:
			return left, nil
		}
	}
}

// term := unary (('*'|'/') unary)*
func (p *parser) parseTerm() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokStar:
			t := p.next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = binary{op: '*', left: left, right: right, pos: t.pos}
		case tokSlash:
			t := p.next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = binary{op: '/', left: left, right: right, pos: t.pos}
		default:
			return left, nil
		}
	}
}

// unary := '-' unary | primary
func (p *parser) parseUnary() (expr, error) {
	if p.peek().kind == tokMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate{operand: operand}, nil
	}
	return p.parsePrimary()
}

// primary := NUMBER | IDENT | IDENT '(' args ')' | '(' expr ')'
func (p *parser) parsePrimary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return literal{val: t.num}, nil
	case tokIdent:
		if p.peek().kind != tokLParen {
			return variable{name: t.text, pos: t.pos}, nil
		}
		return p.parseCall(t)
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, syntaxErr(p.peek().pos, "expected ')'")
		}
		p.next()
		return inner, nil
	case tokEOF:
		return nil, syntaxErr(t.pos, "unexpected end of formula")
	default:
		return nil, syntaxErr(t.pos, fmt.Sprintf("unexpected %q", t.text))
	}
}

func (p *parser) parseCall(name token) (expr, error) {
	p.next() // consume '('
	var minArgs, maxArgs int
	switch name.text {
	case "min", "max":
		minArgs, maxArgs = 2, 8
	case "round":
		minArgs, maxArgs = 1, 2
	default:
		return nil, syntaxErr(name.pos, fmt.Sprintf("unknown function %q", name.text))
	}
	var args []expr
	if p.peek().kind != tokRParen {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if p.peek().kind != tokRParen {
		return nil, syntaxErr(p.peek().pos, "expected ')'")
	}
	p.next()
	if len(args) < minArgs || len(args) > maxArgs {
		return nil, syntaxErr(name.pos, fmt.Sprintf("%s expects %d to %d arguments, got %d", name.text, minArgs, maxArgs, len(args)))
	}
	return call{fn: name.text, args: args}, nil
}

func collectVars(e expr, seen map[string]bool) {
	switch n := e.(type) {
	case variable:
		seen[n.name] = true
	case binary:
		collectVars(n.left, seen)
		collectVars(n.right, seen)
	case negate:
		collectVars(n.operand, seen)
	case call:
		for _, a := range n.args {
			collectVars(a, seen)
		}
	}
}
