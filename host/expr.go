// Copyright 2026 The chip8 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"strconv"
)

var (
	errExprParse    = errors.New("expression syntax error")
	errDivideByZero = errors.New("division by zero")
)

type tokenType byte

const (
	tokenNil tokenType = iota
	tokenIdentifier
	tokenNumber
	tokenOp
	tokenLParen
	tokenRParen
)

type token struct {
	typ   tokenType
	text  string // identifier or operator symbol
	value int64  // number value
}

// Binary operator precedence. Higher binds tighter.
var binaryOps = map[string]struct {
	prec byte
	eval func(a, b int64) (int64, error)
}{
	"*":  {6, func(a, b int64) (int64, error) { return a * b, nil }},
	"/":  {6, divide},
	"%":  {6, modulo},
	"+":  {5, func(a, b int64) (int64, error) { return a + b, nil }},
	"-":  {5, func(a, b int64) (int64, error) { return a - b, nil }},
	"<<": {4, func(a, b int64) (int64, error) { return a << uint(b&63), nil }},
	">>": {4, func(a, b int64) (int64, error) { return a >> uint(b&63), nil }},
	"&":  {3, func(a, b int64) (int64, error) { return a & b, nil }},
	"^":  {2, func(a, b int64) (int64, error) { return a ^ b, nil }},
	"|":  {1, func(a, b int64) (int64, error) { return a | b, nil }},
}

func divide(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errDivideByZero
	}
	return a / b, nil
}

func modulo(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errDivideByZero
	}
	return a % b, nil
}

type resolver interface {
	resolveIdentifier(s string) (int64, error)
}

//
// exprParser
//

// An exprParser evaluates integer expressions typed at the monitor prompt.
// Numbers are decimal unless prefixed with $ or 0x (hex), 0b (binary) or
// 0d (decimal). In hex mode, bare numbers are hexadecimal.
type exprParser struct {
	hexMode bool
	tokens  []token
	pos     int
	r       resolver
}

func newExprParser() *exprParser {
	return &exprParser{}
}

func (p *exprParser) Parse(expr string, r resolver) (int64, error) {
	defer p.reset()

	if err := p.tokenize(tstring(expr)); err != nil {
		return 0, err
	}
	if len(p.tokens) == 0 {
		return 0, errExprParse
	}

	p.r = r
	v, err := p.parseBinary(1)
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, errExprParse
	}
	return v, nil
}

func (p *exprParser) reset() {
	p.tokens = p.tokens[:0]
	p.pos = 0
	p.r = nil
}

func (p *exprParser) peek() token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return token{}
}

func (p *exprParser) next() token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

// parseBinary parses a chain of binary operations whose operators have
// precedence of at least minPrec.
func (p *exprParser) parseBinary(minPrec byte) (int64, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return 0, err
	}

	for {
		t := p.peek()
		if t.typ != tokenOp {
			return lhs, nil
		}
		op, ok := binaryOps[t.text]
		if !ok || op.prec < minPrec {
			return lhs, nil
		}
		p.next()

		rhs, err := p.parseBinary(op.prec + 1)
		if err != nil {
			return 0, err
		}
		if lhs, err = op.eval(lhs, rhs); err != nil {
			return 0, err
		}
	}
}

func (p *exprParser) parseUnary() (int64, error) {
	t := p.next()
	switch t.typ {
	case tokenNumber:
		return t.value, nil

	case tokenIdentifier:
		return p.r.resolveIdentifier(t.text)

	case tokenLParen:
		v, err := p.parseBinary(1)
		if err != nil {
			return 0, err
		}
		if p.next().typ != tokenRParen {
			return 0, errExprParse
		}
		return v, nil

	case tokenOp:
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch t.text {
		case "-":
			return -v, nil
		case "+":
			return v, nil
		case "~":
			return ^v, nil
		}
	}
	return 0, errExprParse
}

//
// tokenizer
//

func (p *exprParser) tokenize(t tstring) error {
	for {
		t = t.consumeWhitespace()
		if len(t) == 0 {
			return nil
		}

		var tok token
		var err error
		switch c := t[0]; {
		case c == '(':
			tok, t = token{typ: tokenLParen}, t.consume(1)
		case c == ')':
			tok, t = token{typ: tokenRParen}, t.consume(1)
		case c == '<' || c == '>':
			if len(t) < 2 || t[1] != c {
				return errExprParse
			}
			tok, t = token{typ: tokenOp, text: string(t[:2])}, t.consume(2)
		case c == '\'':
			if len(t) < 3 || t[2] != '\'' {
				return errExprParse
			}
			tok, t = token{typ: tokenNumber, value: int64(t[1])}, t.consume(3)
		case c == '$' || decimal(c):
			tok, t, err = p.parseNumber(t)
		case identifier(c):
			tok, t, err = p.parseIdentifier(t)
		case isOperator(c):
			tok, t = token{typ: tokenOp, text: string(c)}, t.consume(1)
		default:
			return errExprParse
		}
		if err != nil {
			return err
		}
		p.tokens = append(p.tokens, tok)
	}
}

func (p *exprParser) parseNumber(t tstring) (tok token, remain tstring, err error) {
	base, fn, num := 10, decimal, t
	if p.hexMode {
		base, fn = 16, hexadecimal
	}

	switch {
	case num[0] == '$':
		base, fn, num = 16, hexadecimal, num.consume(1)

	case len(num) > 2 && num[0] == '0' && (num[1] == 'x' || num[1] == 'b' || num[1] == 'd'):
		switch num[1] {
		case 'x':
			base, fn = 16, hexadecimal
		case 'b':
			base, fn = 2, binary
		case 'd':
			base, fn = 10, decimal
		}
		num = num.consume(2)
	}

	num, remain = num.consumeWhile(fn)
	if num == "" || (len(remain) > 0 && identifier(remain[0])) {
		return token{}, t, errExprParse
	}

	v, err := strconv.ParseInt(string(num), base, 64)
	if err != nil {
		return token{}, t, errExprParse
	}
	return token{typ: tokenNumber, value: v}, remain, nil
}

// parseIdentifier scans a register name or, in hex mode, a hexadecimal
// number that happens to start with a letter.
func (p *exprParser) parseIdentifier(t tstring) (tok token, remain tstring, err error) {
	id, remain := t.consumeWhile(identifier)
	if p.hexMode && id.scanWhile(hexadecimal) == len(id) {
		return p.parseNumber(t)
	}
	return token{typ: tokenIdentifier, text: string(id)}, remain, nil
}

//
// tstring
//

type tstring string

func (t tstring) consume(n int) tstring {
	return t[n:]
}

func (t tstring) consumeWhitespace() tstring {
	return t.consume(t.scanWhile(whitespace))
}

func (t tstring) scanWhile(fn func(c byte) bool) int {
	i := 0
	for ; i < len(t) && fn(t[i]); i++ {
	}
	return i
}

func (t tstring) consumeWhile(fn func(c byte) bool) (consumed, remain tstring) {
	i := t.scanWhile(fn)
	return t[:i], t[i:]
}

func whitespace(c byte) bool {
	return c == ' ' || c == '\t'
}

func decimal(c byte) bool {
	return c >= '0' && c <= '9'
}

func hexadecimal(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func binary(c byte) bool {
	return c == '0' || c == '1'
}

func identifier(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '.'
}

func isOperator(c byte) bool {
	switch c {
	case '*', '/', '%', '+', '-', '&', '^', '|', '~':
		return true
	}
	return false
}
