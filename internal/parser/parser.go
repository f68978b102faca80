// Package parser turns a token stream into wisp's abstract syntax (§4.1).
// It desugars reader macros ('x, #(...), #;x, #'x) while building the tree,
// the way the teacher's lang/parser desugars prefix forms while building
// ast.Expr nodes.
package parser

import (
	"fmt"
	"strconv"

	"github.com/wisplang/wisp/internal/ast"
	"github.com/wisplang/wisp/internal/lexer"
	"github.com/wisplang/wisp/internal/token"
)

// A ParseError is a fatal parse error with a source position, optionally
// noting the nesting depth at which an unclosed form was detected (§4.1).
type ParseError struct {
	Pos   token.Position
	Msg   string
	Depth int
}

func (e *ParseError) Error() string {
	if e.Depth > 0 {
		return fmt.Sprintf("%s: %s (open at depth %d)", e.Pos, e.Msg, e.Depth)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Parser reads forms one at a time from a token stream.
type Parser struct {
	filename string
	toks     []token.Token
	pos      int
	depth    int
}

// New creates a Parser over the full token stream of one file.
func New(filename string, toks []token.Token) *Parser {
	return &Parser{filename: filename, toks: toks}
}

// ParseString tokenizes and parses src in one step, returning every
// top-level form.
func ParseString(filename, src string) ([]*ast.Node, error) {
	var lexErrs []error
	toks := lexer.ScanAll(filename, []byte(src), func(pos token.Position, msg string) {
		lexErrs = append(lexErrs, &lexer.LexError{Pos: pos, Msg: msg})
	})
	if len(lexErrs) > 0 {
		return nil, lexErrs[0]
	}
	return New(filename, toks).ParseAll()
}

// ParseAll parses every top-level form until EOF.
func (p *Parser) ParseAll() ([]*ast.Node, error) {
	var forms []*ast.Node
	for {
		if p.cur().Kind == token.EOF {
			return forms, nil
		}
		n, err := p.parseForm()
		if err != nil {
			return forms, err
		}
		if n != nil {
			forms = append(forms, n)
		}
	}
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// parseForm parses one datum. It returns (nil, nil) when the form was a
// datum comment (#;x) that consumed and discarded the next form.
func (p *Parser) parseForm() (*ast.Node, error) {
	t := p.cur()
	switch t.Kind {
	case token.EOF:
		return nil, &ParseError{Pos: t.Pos, Msg: "unexpected end of file"}

	case token.INT:
		p.advance()
		v, err := strconv.ParseInt(t.Lit, 10, 64)
		if err != nil {
			return nil, &ParseError{Pos: t.Pos, Msg: fmt.Sprintf("invalid integer literal %q", t.Lit)}
		}
		return &ast.Node{Kind: ast.Int, Int: v, Pos: t.Pos}, nil

	case token.FLOAT:
		p.advance()
		v, err := strconv.ParseFloat(t.Lit, 64)
		if err != nil {
			return nil, &ParseError{Pos: t.Pos, Msg: fmt.Sprintf("invalid float literal %q", t.Lit)}
		}
		return &ast.Node{Kind: ast.Float, Flt: v, Pos: t.Pos}, nil

	case token.BOOL:
		p.advance()
		return &ast.Node{Kind: ast.Bool, Bool: t.Lit == "true", Pos: t.Pos}, nil

	case token.STRING:
		p.advance()
		return &ast.Node{Kind: ast.Str, Str: t.Lit, Pos: t.Pos}, nil

	case token.SYMBOL:
		p.advance()
		return ast.MkSym(t.Pos, t.Lit), nil

	case token.QUOTE:
		p.advance()
		inner, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		if inner == nil {
			return nil, &ParseError{Pos: t.Pos, Msg: "quote applied to nothing"}
		}
		return ast.MkList(t.Pos, ast.MkSym(t.Pos, "quote"), inner), nil

	case token.HASH_QUOTE:
		p.advance()
		inner, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		return inner, nil // #'x is the identity on its operand (§4.1)

	case token.HASH_SEMI:
		p.advance()
		// Discard exactly one following form (#;x suppresses x, §4.1).
		if _, err := p.parseForm(); err != nil {
			return nil, err
		}
		return nil, nil

	case token.HASH_LPAREN:
		p.advance()
		p.depth++
		elems, err := p.parseUntilRParen(t.Pos)
		p.depth--
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Vector, List: elems, Pos: t.Pos}, nil

	case token.LPAREN:
		p.advance()
		p.depth++
		n, err := p.parseList(t.Pos)
		p.depth--
		return n, err

	case token.RPAREN:
		return nil, &ParseError{Pos: t.Pos, Msg: "unexpected ')'"}

	default:
		return nil, &ParseError{Pos: t.Pos, Msg: fmt.Sprintf("unexpected token %s", t)}
	}
}

// parseList parses the body of a "(" that was already consumed, handling
// the dotted-list form (h1 h2 ... . tail), including the zero-head case
// (. tail) a pure-variadic parameter spec uses (§8 seed scenario 4).
func (p *Parser) parseList(openPos token.Position) (*ast.Node, error) {
	var elems []*ast.Node
	for {
		if p.cur().Kind == token.EOF {
			return nil, &ParseError{Pos: openPos, Msg: "unclosed '('", Depth: p.depth}
		}
		if p.cur().Kind == token.RPAREN {
			p.advance()
			return &ast.Node{Kind: ast.List, List: elems, Pos: openPos}, nil
		}
		if p.cur().Kind == token.SYMBOL && p.cur().Lit == "." {
			p.advance()
			final, err := p.parseForm()
			if err != nil {
				return nil, err
			}
			if p.cur().Kind != token.RPAREN {
				return nil, &ParseError{Pos: p.cur().Pos, Msg: "expected ')' after dotted tail"}
			}
			p.advance()
			return &ast.Node{Kind: ast.DottedList, List: elems, Final: final, Pos: openPos}, nil
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		if n != nil {
			elems = append(elems, n)
		}
	}
}

func (p *Parser) parseUntilRParen(openPos token.Position) ([]*ast.Node, error) {
	var elems []*ast.Node
	for {
		if p.cur().Kind == token.EOF {
			return nil, &ParseError{Pos: openPos, Msg: "unclosed '#('", Depth: p.depth}
		}
		if p.cur().Kind == token.RPAREN {
			p.advance()
			return elems, nil
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		if n != nil {
			elems = append(elems, n)
		}
	}
}
