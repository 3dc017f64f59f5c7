package exp

import (
	"fmt"
	"unicode"
)

type TokenType int

const (
	EOF TokenType = iota
	NAT
	HEX
	BIN
	IDENT
	TRUE
	FALSE
	LPAREN
	RPAREN
	COMMA
	COLON
	EQ
	STAR
	TILDE
	AMP
	PIPE
	ARROW
)

var tokenNames = map[TokenType]string{
	EOF:    "end of input",
	NAT:    "number",
	HEX:    "hex literal",
	BIN:    "binary literal",
	IDENT:  "identifier",
	TRUE:   "true",
	FALSE:  "false",
	LPAREN: "(",
	RPAREN: ")",
	COMMA:  ",",
	COLON:  ":",
	EQ:     "=",
	STAR:   "*",
	TILDE:  "~",
	AMP:    "&",
	PIPE:   "|",
	ARROW:  "->",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

var punctuation = map[rune]TokenType{
	'(': LPAREN,
	')': RPAREN,
	',': COMMA,
	':': COLON,
	'=': EQ,
	'*': STAR,
	'~': TILDE,
	'&': AMP,
	'|': PIPE,
}

var keywords = map[string]TokenType{
	"true":  TRUE,
	"false": FALSE,
}

// Token is a lexeme with its 0-based rune offset in the source.
type Token struct {
	Type   TokenType
	Lexeme string
	Pos    int
}

type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	return r
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// scanNumber handles decimal, 0x and 0b literals. The first digit must
// still be at l.peek().
func (l *lexer) scanNumber() (Token, error) {
	start := l.pos
	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance()
		l.advance()
		digits := l.pos
		for isHexDigit(l.peek()) || l.peek() == '_' {
			l.advance()
		}
		if l.pos == digits {
			return Token{}, fmt.Errorf("at %d: hex literal without digits", start)
		}
		return Token{Type: HEX, Lexeme: stripUnderscores(l.src[digits:l.pos]), Pos: start}, nil
	}
	if l.peek() == '0' && (l.peek2() == 'b' || l.peek2() == 'B') {
		l.advance()
		l.advance()
		digits := l.pos
		for l.peek() == '0' || l.peek() == '1' || l.peek() == '_' {
			l.advance()
		}
		if l.pos == digits {
			return Token{}, fmt.Errorf("at %d: binary literal without digits", start)
		}
		return Token{Type: BIN, Lexeme: stripUnderscores(l.src[digits:l.pos]), Pos: start}, nil
	}
	for unicode.IsDigit(l.peek()) {
		l.advance()
	}
	if isIdentStart(l.peek()) {
		return Token{}, fmt.Errorf("at %d: malformed number %q", start, string(l.src[start:l.pos+1]))
	}
	return Token{Type: NAT, Lexeme: string(l.src[start:l.pos]), Pos: start}, nil
}

func stripUnderscores(rs []rune) string {
	out := make([]rune, 0, len(rs))
	for _, r := range rs {
		if r != '_' {
			out = append(out, r)
		}
	}
	return string(out)
}

func (l *lexer) scanIdent() Token {
	start := l.pos
	for isIdentPart(l.peek()) {
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENT
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Pos: start}
}

func (l *lexer) next() (Token, error) {
	for unicode.IsSpace(l.peek()) {
		l.advance()
	}
	pos := l.pos
	r := l.peek()
	switch {
	case r == 0 && l.pos >= len(l.src):
		return Token{Type: EOF, Pos: pos}, nil
	case unicode.IsDigit(r):
		return l.scanNumber()
	case isIdentStart(r):
		return l.scanIdent(), nil
	}
	l.advance()
	if tt, ok := punctuation[r]; ok {
		return Token{Type: tt, Lexeme: string(r), Pos: pos}, nil
	}
	if r == '-' && l.peek() == '>' {
		l.advance()
		return Token{Type: ARROW, Lexeme: "->", Pos: pos}, nil
	}
	return Token{}, fmt.Errorf("at %d: unexpected character %q", pos, r)
}

// Tokenize splits src into tokens, ending with EOF.
func Tokenize(src string) ([]Token, error) {
	l := newLexer(src)
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks, nil
		}
	}
}
