package dsl

import (
	"fmt"
	"strconv"
)

// Parse reads a full program from src and returns its RawAst, or the first
// SyntaxError encountered. Parsing stops at the first malformed call —
// syntax errors are fatal for the whole program, unlike schema
// validation errors which are per-call (see internal/validator).
func Parse(src string) (*RawAst, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	ast := &RawAst{}
	for p.tok.Kind != TEOF {
		call, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		ast.Calls = append(ast.Calls, call)
	}
	return ast, nil
}

type parser struct {
	lex *lexer
	tok Token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(k TokenKind, what string) (Token, error) {
	if p.tok.Kind != k {
		return Token{}, &SyntaxError{Message: fmt.Sprintf("expected %s", what), Span: p.tok.Span}
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return Token{}, err
	}
	return t, nil
}

func (p *parser) parseCall() (Call, error) {
	lparen, err := p.expect(TLParen, "'('")
	if err != nil {
		return Call{}, err
	}
	verbTok, err := p.expect(TIdent, "verb name")
	if err != nil {
		return Call{}, err
	}

	call := Call{Verb: verbTok.Text, VerbSpan: verbTok.Span}

	for p.tok.Kind == TKeyword {
		argSpanStart := p.tok.Span
		name := p.tok.Text
		if err := p.advance(); err != nil {
			return Call{}, err
		}
		if name == "as" {
			sym, err := p.expect(TSymbol, "symbol after ':as'")
			if err != nil {
				return Call{}, err
			}
			call.As = sym.Text
			call.AsSpan = sym.Span
			continue
		}
		val, err := p.parseValue()
		if err != nil {
			return Call{}, err
		}
		sp := argSpanStart
		sp.End = val.Span.End
		call.Args = append(call.Args, Arg{Name: name, Value: val, Span: sp})
	}

	rparen, err := p.expect(TRParen, "')'")
	if err != nil {
		return Call{}, err
	}
	call.Span = Span{Start: lparen.Span.Start, End: rparen.Span.End, Line: lparen.Span.Line, Col: lparen.Span.Col}
	return call, nil
}

func (p *parser) parseValue() (Value, error) {
	switch p.tok.Kind {
	case TString:
		t := p.tok
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		return Value{Kind: KString, Str: t.Text, Span: t.Span}, nil
	case TInteger:
		t := p.tok
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		n, convErr := strconv.ParseInt(t.Text, 10, 64)
		if convErr != nil {
			return Value{}, &SyntaxError{Message: "malformed integer literal", Span: t.Span}
		}
		return Value{Kind: KInteger, Int: n, Span: t.Span}, nil
	case TDecimal:
		t := p.tok
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		f, convErr := strconv.ParseFloat(t.Text, 64)
		if convErr != nil {
			return Value{}, &SyntaxError{Message: "malformed decimal literal", Span: t.Span}
		}
		return Value{Kind: KDecimal, Dec: f, Span: t.Span}, nil
	case TBool:
		t := p.tok
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		return Value{Kind: KBool, Bool: t.Text == "true", Span: t.Span}, nil
	case TDate:
		t := p.tok
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		return Value{Kind: KDate, Str: t.Text, Span: t.Span}, nil
	case TSymbol:
		t := p.tok
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		return Value{Kind: KSymbol, Str: t.Text, Span: t.Span}, nil
	case TLBracket:
		return p.parseList()
	case TLBrace:
		return p.parseMap()
	default:
		return Value{}, &SyntaxError{Message: "expected a value", Span: p.tok.Span}
	}
}

func (p *parser) parseList() (Value, error) {
	open := p.tok.Span
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	var items []Value
	for p.tok.Kind != TRBracket {
		if p.tok.Kind == TEOF {
			return Value{}, &SyntaxError{Message: "unterminated list literal", Span: open}
		}
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	close := p.tok.Span
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	return Value{Kind: KList, List: items, Span: Span{Start: open.Start, End: close.End, Line: open.Line, Col: open.Col}}, nil
}

func (p *parser) parseMap() (Value, error) {
	open := p.tok.Span
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	var entries []MapEntry
	for p.tok.Kind != TRBrace {
		if p.tok.Kind == TEOF {
			return Value{}, &SyntaxError{Message: "unterminated map literal", Span: open}
		}
		keyTok, err := p.expect(TKeyword, "map key (':name')")
		if err != nil {
			return Value{}, err
		}
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, MapEntry{
			Key:   keyTok.Text,
			Value: v,
			Span:  Span{Start: keyTok.Span.Start, End: v.Span.End, Line: keyTok.Span.Line, Col: keyTok.Span.Col},
		})
	}
	close := p.tok.Span
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	return Value{Kind: KMap, MapVal: entries, Span: Span{Start: open.Start, End: close.End, Line: open.Line, Col: open.Col}}, nil
}
