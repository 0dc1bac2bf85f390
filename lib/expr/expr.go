// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package expr implements the arithmetic expression language of the
// calculate stage.
//
// The grammar is deliberately closed: binary + - * / % and ** (right
// associative, Python precedence), leading signs, parentheses, number
// literals, column references, and single-argument calls to a fixed
// set of math functions (log, log10, sqrt, abs, exp, sin, cos, tan).
// Column names that are not plain identifiers can be written in
// backticks. Everything else fails at parse time; there is no general
// evaluator behind this package.
package expr

import (
	"fmt"
	"math"
)

// Functions is the call allow-list. Identifiers in call position must
// be one of these; anywhere else an identifier is a column reference.
var Functions = map[string]func(float64) float64{
	"log":   math.Log,
	"log10": math.Log10,
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"exp":   math.Exp,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
}

// Expr is a parsed expression, ready for repeated evaluation.
type Expr struct {
	src     string
	root    node
	columns []string
}

// Parse parses src against the closed grammar. The error names the
// byte position of the offending token.
func Parse(src string) (*Expr, error) {
	parser := &parser{scanner: scanner{src: src}, seen: make(map[string]bool)}
	if err := parser.advance(); err != nil {
		return nil, err
	}
	root, err := parser.parseSum()
	if err != nil {
		return nil, err
	}
	if parser.current.kind != tokenEOF {
		return nil, fmt.Errorf("position %d: unexpected %s after expression", parser.current.pos, parser.current.kind)
	}
	return &Expr{src: src, root: root, columns: parser.columns}, nil
}

// String returns the original expression source.
func (e *Expr) String() string { return e.src }

// Columns returns the referenced column names in first-appearance
// order, without duplicates.
func (e *Expr) Columns() []string {
	out := make([]string, len(e.columns))
	copy(out, e.columns)
	return out
}

// Eval evaluates the expression for one record. lookup resolves a
// column reference to its numeric cell; ok=false marks a null cell.
// Any null operand makes the whole result null. The caller decides
// what a non-finite result means.
func (e *Expr) Eval(lookup func(column string) (value float64, ok bool, err error)) (float64, bool, error) {
	return e.root.eval(lookup)
}

type node interface {
	eval(lookup func(string) (float64, bool, error)) (float64, bool, error)
}

type numberNode float64

func (n numberNode) eval(func(string) (float64, bool, error)) (float64, bool, error) {
	return float64(n), true, nil
}

type columnNode string

func (n columnNode) eval(lookup func(string) (float64, bool, error)) (float64, bool, error) {
	return lookup(string(n))
}

type callNode struct {
	name string
	fn   func(float64) float64
	arg  node
}

func (n *callNode) eval(lookup func(string) (float64, bool, error)) (float64, bool, error) {
	value, ok, err := n.arg.eval(lookup)
	if err != nil || !ok {
		return 0, ok, err
	}
	return n.fn(value), true, nil
}

type negateNode struct {
	operand node
}

func (n *negateNode) eval(lookup func(string) (float64, bool, error)) (float64, bool, error) {
	value, ok, err := n.operand.eval(lookup)
	if err != nil || !ok {
		return 0, ok, err
	}
	return -value, true, nil
}

type binaryNode struct {
	op          tokenKind
	left, right node
}

func (n *binaryNode) eval(lookup func(string) (float64, bool, error)) (float64, bool, error) {
	left, ok, err := n.left.eval(lookup)
	if err != nil || !ok {
		return 0, ok, err
	}
	right, ok, err := n.right.eval(lookup)
	if err != nil || !ok {
		return 0, ok, err
	}
	switch n.op {
	case tokenPlus:
		return left + right, true, nil
	case tokenMinus:
		return left - right, true, nil
	case tokenStar:
		return left * right, true, nil
	case tokenSlash:
		return left / right, true, nil
	case tokenPercent:
		return floorMod(left, right), true, nil
	case tokenPower:
		return math.Pow(left, right), true, nil
	default:
		return 0, false, fmt.Errorf("unhandled operator %s", n.op)
	}
}

// floorMod is floored modulo: the result takes the sign of the
// divisor, so -7 % 3 is 2.
func floorMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

type parser struct {
	scanner scanner
	current token
	columns []string
	seen    map[string]bool
}

func (p *parser) advance() error {
	next, err := p.scanner.next()
	if err != nil {
		return err
	}
	p.current = next
	return nil
}

// parseSum handles + and -.
func (p *parser) parseSum() (node, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for p.current.kind == tokenPlus || p.current.kind == tokenMinus {
		op := p.current.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

// parseProduct handles *, / and %.
func (p *parser) parseProduct() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.current.kind == tokenStar || p.current.kind == tokenSlash || p.current.kind == tokenPercent {
		op := p.current.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

// parseUnary handles leading signs. Like Python, -x**y negates the
// power, not the base.
func (p *parser) parseUnary() (node, error) {
	switch p.current.kind {
	case tokenMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negateNode{operand: operand}, nil
	case tokenPlus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseUnary()
	}
	return p.parsePower()
}

// parsePower handles **, right associative: a**b**c is a**(b**c) and
// the exponent may carry its own sign.
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.current.kind != tokenPower {
		return base, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	exponent, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: tokenPower, left: base, right: exponent}, nil
}

func (p *parser) parsePrimary() (node, error) {
	switch p.current.kind {
	case tokenNumber:
		value := p.current.number
		if err := p.advance(); err != nil {
			return nil, err
		}
		return numberNode(value), nil

	case tokenIdent:
		name := p.current.text
		position := p.current.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.current.kind != tokenLeftParen {
			if !p.seen[name] {
				p.seen[name] = true
				p.columns = append(p.columns, name)
			}
			return columnNode(name), nil
		}
		fn, allowed := Functions[name]
		if !allowed {
			return nil, fmt.Errorf("position %d: unknown function %q", position, name)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		arg, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if p.current.kind != tokenRightParen {
			return nil, fmt.Errorf("position %d: expected %s, found %s", p.current.pos, tokenRightParen, p.current.kind)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &callNode{name: name, fn: fn, arg: arg}, nil

	case tokenLeftParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if p.current.kind != tokenRightParen {
			return nil, fmt.Errorf("position %d: expected %s, found %s", p.current.pos, tokenRightParen, p.current.kind)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	default:
		return nil, fmt.Errorf("position %d: expected a value, found %s", p.current.pos, p.current.kind)
	}
}
