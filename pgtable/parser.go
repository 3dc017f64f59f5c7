package pgtable

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokInt
	tokHex
	tokBin
	tokSemi
	tokMapsTo
	tokMaybeMapsTo
	tokStar
	tokEq
	tokLParen
	tokRParen
	tokComma
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
)

type token struct {
	typ    tokenType
	text   string
	offset int // byte offset in the source
}

// syntaxError carries the byte offset of the failure so callers can
// relocate it.
type syntaxError struct {
	offset int
	msg    string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("at offset %d: %s", e.offset, e.msg)
}

var punctuation = map[byte]tokenType{
	';': tokSemi,
	'*': tokStar,
	'=': tokEq,
	'(': tokLParen,
	')': tokRParen,
	',': tokComma,
	'{': tokLBrace,
	'}': tokRBrace,
	'[': tokLBracket,
	']': tokRBracket,
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n' || c == '\t' || c == ' ' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c >= '0' && c <= '9':
			start := i
			typ := tokInt
			if c == '0' && i+1 < len(src) && (src[i+1] == 'x' || src[i+1] == 'b') {
				if src[i+1] == 'x' {
					typ = tokHex
				} else {
					typ = tokBin
				}
				i += 2
			}
			for i < len(src) && (isAlnum(rune(src[i])) || src[i] == '_') {
				i++
			}
			toks = append(toks, token{typ: typ, text: src[start:i], offset: start})
		case isAlnum(rune(c)) || c == '_':
			start := i
			for i < len(src) && (isAlnum(rune(src[i])) || src[i] == '_' || src[i] == '.') {
				i++
			}
			toks = append(toks, token{typ: tokIdent, text: src[start:i], offset: start})
		case strings.HasPrefix(src[i:], "|->"):
			toks = append(toks, token{typ: tokMapsTo, text: "|->", offset: i})
			i += 3
		case strings.HasPrefix(src[i:], "?->"):
			toks = append(toks, token{typ: tokMaybeMapsTo, text: "?->", offset: i})
			i += 3
		default:
			typ, ok := punctuation[c]
			if !ok {
				return nil, &syntaxError{offset: i, msg: fmt.Sprintf("unexpected character %q", c)}
			}
			toks = append(toks, token{typ: typ, text: string(c), offset: i})
			i++
		}
	}
	toks = append(toks, token{typ: tokEOF, offset: len(src)})
	return toks, nil
}

func isAlnum(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

type setupParser struct {
	toks []token
	pos  int
}

func (p *setupParser) peek() token { return p.toks[p.pos] }

func (p *setupParser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *setupParser) advance() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *setupParser) fail(t token, format string, args ...any) error {
	return &syntaxError{offset: t.offset, msg: fmt.Sprintf(format, args...)}
}

func (p *setupParser) expect(typ tokenType, what string) (token, error) {
	t := p.peek()
	if t.typ != typ {
		return t, p.fail(t, "expected %s, found %s", what, describeToken(t))
	}
	return p.advance(), nil
}

func (p *setupParser) keyword(word string) bool {
	t := p.peek()
	if t.typ == tokIdent && t.text == word {
		p.advance()
		return true
	}
	return false
}

func describeToken(t token) string {
	if t.typ == tokEOF {
		return "end of setup"
	}
	return strconv.Quote(t.text)
}

// parseSetup parses the full DSL text.
func parseSetup(src string) ([]Constraint, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &setupParser{toks: toks}
	var out []Constraint
	for p.peek().typ != tokEOF {
		if p.peek().typ == tokSemi {
			p.advance()
			continue
		}
		c, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *setupParser) parseStatement() (Constraint, error) {
	t := p.peek()
	if t.typ == tokIdent {
		switch t.text {
		case "physical", "virtual", "intermediate":
			return p.parseAddress(0)
		case "aligned":
			p.advance()
			n, err := p.parseUint()
			if err != nil {
				return nil, err
			}
			return p.parseAddress(n)
		case "option":
			return p.parseOption()
		case "identity":
			return p.parseIdentity()
		case "s1table", "s2table":
			return p.parseTable()
		}
		if p.peekAt(1).typ == tokEq {
			return p.parseFunction()
		}
	}
	if t.typ == tokStar {
		return p.parseInitial()
	}
	return p.parseMapsTo()
}

func (p *setupParser) endStatement() error {
	_, err := p.expect(tokSemi, "';'")
	return err
}

func (p *setupParser) parseUint() (uint64, error) {
	t := p.peek()
	var (
		n   uint64
		err error
	)
	switch t.typ {
	case tokInt:
		n, err = strconv.ParseUint(t.text, 10, 64)
	case tokHex:
		n, err = strconv.ParseUint(strings.TrimPrefix(t.text, "0x"), 16, 64)
	case tokBin:
		n, err = strconv.ParseUint(strings.TrimPrefix(t.text, "0b"), 2, 64)
	default:
		return 0, p.fail(t, "expected number, found %s", describeToken(t))
	}
	if err != nil {
		return 0, p.fail(t, "bad number %s", t.text)
	}
	p.advance()
	return n, nil
}

func (p *setupParser) parseAddress(align uint64) (Constraint, error) {
	t := p.advance()
	var kind AddressKind
	switch t.text {
	case "physical":
		kind = Physical
	case "virtual":
		kind = Virtual
	case "intermediate":
		kind = Intermediate
	default:
		return nil, p.fail(t, "expected physical, virtual or intermediate after aligned")
	}
	c := &Address{Kind: kind, Align: align}
	for p.peek().typ == tokIdent {
		c.Names = append(c.Names, p.advance().text)
	}
	if len(c.Names) == 0 {
		return nil, p.fail(p.peek(), "expected at least one %s address name", kind)
	}
	return c, p.endStatement()
}

func (p *setupParser) parseOption() (Constraint, error) {
	p.advance()
	name, err := p.expect(tokIdent, "option name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEq, "'='"); err != nil {
		return nil, err
	}
	val := p.peek()
	if val.typ != tokIdent || (val.text != "true" && val.text != "false") {
		return nil, p.fail(val, "expected true or false, found %s", describeToken(val))
	}
	p.advance()
	return &Option{Name: name.text, Value: val.text == "true"}, p.endStatement()
}

func (p *setupParser) parseIdentity() (Constraint, error) {
	p.advance()
	addr, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	attrs, err := p.parseAttrs()
	if err != nil {
		return nil, err
	}
	return &Identity{Addr: addr, Attrs: attrs}, p.endStatement()
}

// parseTable reads an s1table/s2table header and skips its braced body.
func (p *setupParser) parseTable() (Constraint, error) {
	kw := p.advance()
	stage := 1
	if kw.text == "s2table" {
		stage = 2
	}
	name, err := p.expect(tokIdent, "table name")
	if err != nil {
		return nil, err
	}
	for p.peek().typ != tokLBrace {
		if p.peek().typ == tokEOF {
			return nil, p.fail(p.peek(), "expected '{' after %s %s", kw.text, name.text)
		}
		p.advance()
	}
	open := p.advance()
	depth := 1
	for depth > 0 {
		t := p.advance()
		switch t.typ {
		case tokLBrace:
			depth++
		case tokRBrace:
			depth--
		case tokEOF:
			return nil, p.fail(open, "unterminated %s block", kw.text)
		}
	}
	return &CustomTable{Stage: stage, Name: name.text}, nil
}

func (p *setupParser) parseFunction() (Constraint, error) {
	name := p.advance()
	p.advance() // =
	fn, err := p.expect(tokIdent, "function name")
	if err != nil {
		return nil, err
	}
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	return &Function{Name: name.text, Func: fn.text, Args: args}, p.endStatement()
}

func (p *setupParser) parseInitial() (Constraint, error) {
	p.advance() // *
	loc, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEq, "'='"); err != nil {
		return nil, err
	}
	val, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	return &Initial{Loc: loc, Value: val}, p.endStatement()
}

func (p *setupParser) parseMapsTo() (Constraint, error) {
	from, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	arrow := p.peek()
	if arrow.typ != tokMapsTo && arrow.typ != tokMaybeMapsTo {
		return nil, p.fail(arrow, "expected |-> or ?->, found %s", describeToken(arrow))
	}
	p.advance()
	to, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	c := &MapsTo{From: from, To: to, Level: DefaultLevel, Maybe: arrow.typ == tokMaybeMapsTo}
	if p.keyword("at") {
		if !p.keyword("level") {
			return nil, p.fail(p.peek(), "expected 'level' after 'at'")
		}
		lvlTok := p.peek()
		lvl, err := p.parseUint()
		if err != nil {
			return nil, err
		}
		if lvl > 3 {
			return nil, p.fail(lvlTok, "translation table level %d out of range", lvl)
		}
		c.Level = int(lvl)
	}
	if c.Attrs, err = p.parseAttrs(); err != nil {
		return nil, err
	}
	return c, p.endStatement()
}

// parseAttrs keeps everything after `with` up to the end of the statement
// as text.
func (p *setupParser) parseAttrs() (string, error) {
	if !p.keyword("with") {
		return "", nil
	}
	var parts []string
	for p.peek().typ != tokSemi {
		if p.peek().typ == tokEOF {
			return "", p.fail(p.peek(), "expected ';' after attributes")
		}
		parts = append(parts, p.advance().text)
	}
	if len(parts) == 0 {
		return "", p.fail(p.peek(), "expected attributes after 'with'")
	}
	return strings.Join(parts, " "), nil
}

func (p *setupParser) parseArgs() ([]Exp, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []Exp
	if p.peek().typ == tokRParen {
		p.advance()
		return args, nil
	}
	for {
		a, err := p.parseExp()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.peek().typ != tokComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *setupParser) parseExp() (Exp, error) {
	t := p.peek()
	switch t.typ {
	case tokIdent:
		p.advance()
		if p.peek().typ == tokLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &Call{Func: t.text, Args: args}, nil
		}
		return &Id{Name: t.text}, nil
	case tokInt:
		n, err := p.parseUint()
		if err != nil {
			return nil, err
		}
		return &Int{Value: n}, nil
	case tokHex:
		if _, err := p.parseUint(); err != nil {
			return nil, err
		}
		return &Hex{Text: t.text}, nil
	case tokBin:
		if _, err := p.parseUint(); err != nil {
			return nil, err
		}
		return &Bin{Text: t.text}, nil
	default:
		return nil, p.fail(t, "expected address or value, found %s", describeToken(t))
	}
}
