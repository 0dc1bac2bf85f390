// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package expr

import (
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenPercent
	tokenPower
	tokenLeftParen
	tokenRightParen
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of expression"
	case tokenNumber:
		return "number"
	case tokenIdent:
		return "identifier"
	case tokenPlus:
		return `"+"`
	case tokenMinus:
		return `"-"`
	case tokenStar:
		return `"*"`
	case tokenSlash:
		return `"/"`
	case tokenPercent:
		return `"%"`
	case tokenPower:
		return `"**"`
	case tokenLeftParen:
		return `"("`
	case tokenRightParen:
		return `")"`
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

type token struct {
	kind   tokenKind
	text   string  // identifier name (backticks stripped)
	number float64 // value for tokenNumber
	pos    int     // byte offset in the source
}

// scanner tokenizes an expression. Anything outside the grammar
// (comparison operators, strings, commas, assignment) is a scan
// error.
type scanner struct {
	src string
	pos int
}

func (s *scanner) next() (token, error) {
	for s.pos < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			break
		}
		s.pos += size
	}
	if s.pos >= len(s.src) {
		return token{kind: tokenEOF, pos: s.pos}, nil
	}

	start := s.pos
	r, size := utf8.DecodeRuneInString(s.src[s.pos:])

	switch r {
	case '+':
		s.pos += size
		return token{kind: tokenPlus, pos: start}, nil
	case '-':
		s.pos += size
		return token{kind: tokenMinus, pos: start}, nil
	case '*':
		s.pos += size
		if s.pos < len(s.src) && s.src[s.pos] == '*' {
			s.pos++
			return token{kind: tokenPower, pos: start}, nil
		}
		return token{kind: tokenStar, pos: start}, nil
	case '/':
		s.pos += size
		return token{kind: tokenSlash, pos: start}, nil
	case '%':
		s.pos += size
		return token{kind: tokenPercent, pos: start}, nil
	case '(':
		s.pos += size
		return token{kind: tokenLeftParen, pos: start}, nil
	case ')':
		s.pos += size
		return token{kind: tokenRightParen, pos: start}, nil
	case '`':
		return s.scanQuotedIdent()
	}

	if r >= '0' && r <= '9' || r == '.' {
		return s.scanNumber()
	}
	if unicode.IsLetter(r) || r == '_' {
		return s.scanIdent()
	}
	return token{}, fmt.Errorf("position %d: unexpected character %q", start, r)
}

func (s *scanner) scanNumber() (token, error) {
	start := s.pos
	seenDigit := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c >= '0' && c <= '9' {
			seenDigit = true
			s.pos++
			continue
		}
		if c == '.' {
			s.pos++
			continue
		}
		if (c == 'e' || c == 'E') && seenDigit {
			// Exponent part; an optional sign follows.
			s.pos++
			if s.pos < len(s.src) && (s.src[s.pos] == '+' || s.src[s.pos] == '-') {
				s.pos++
			}
			continue
		}
		break
	}
	text := s.src[start:s.pos]
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, fmt.Errorf("position %d: bad number %q", start, text)
	}
	return token{kind: tokenNumber, number: value, pos: start}, nil
}

func (s *scanner) scanIdent() (token, error) {
	start := s.pos
	for s.pos < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		s.pos += size
	}
	return token{kind: tokenIdent, text: s.src[start:s.pos], pos: start}, nil
}

func (s *scanner) scanQuotedIdent() (token, error) {
	start := s.pos
	s.pos++ // opening backtick
	nameStart := s.pos
	for s.pos < len(s.src) {
		if s.src[s.pos] == '`' {
			name := s.src[nameStart:s.pos]
			s.pos++
			if name == "" {
				return token{}, fmt.Errorf("position %d: empty quoted identifier", start)
			}
			return token{kind: tokenIdent, text: name, pos: start}, nil
		}
		s.pos++
	}
	return token{}, fmt.Errorf("position %d: unterminated quoted identifier", start)
}
