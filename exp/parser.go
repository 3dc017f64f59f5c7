package exp

import (
	"strconv"

	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/log"
)

// RegisterResolver maps register names written in a test to their names in
// the architecture symbol table.
type RegisterResolver interface {
	ResolveRegister(name string) (string, error)
}

// Env supplies what the assertion grammar needs beyond the text itself.
type Env struct {
	Registers     RegisterResolver
	Sizeof        map[string]uint32
	DefaultSizeof uint32
}

type parser struct {
	toks []Token
	pos  int
	env  *Env
}

// ParseAssertion parses a final assertion such as `1:X0=1 & ~1:X2=0`.
func ParseAssertion(src string, env *Env) (Exp, error) {
	p, err := newParser(src, env)
	if err != nil {
		return nil, err
	}
	e, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	if err := p.expect(EOF); err != nil {
		return nil, err
	}
	log.Trace(log.ParseMonitoring, "parsed assertion", "src", src, "exp", e)
	return e, nil
}

// ParseValue parses a value expression such as `0x1000`, `pte3(x)` or
// `mkdesc3(oa=pa1)`.
func ParseValue(src string) (Exp, error) {
	p, err := newParser(src, nil)
	if err != nil {
		return nil, err
	}
	e, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if err := p.expect(EOF); err != nil {
		return nil, err
	}
	return e, nil
}

func newParser(src string, env *Env) (*parser, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, litmuserrors.Wrap(litmuserrors.ErrParseExp, "%v", err)
	}
	if env == nil {
		env = &Env{}
	}
	return &parser{toks: toks, env: env}, nil
}

func (p *parser) peek() Token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) advance() Token {
	tok := p.toks[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok Token, format string, args ...any) error {
	args = append([]any{tok.Pos}, args...)
	return litmuserrors.Wrap(litmuserrors.ErrParseExp, "at %d: "+format, args...)
}

func (p *parser) expect(tt TokenType) error {
	tok := p.peek()
	if tok.Type != tt {
		return p.errorf(tok, "expected %s, found %s", tt, describe(tok))
	}
	p.advance()
	return nil
}

func describe(tok Token) string {
	if tok.Lexeme == "" {
		return tok.Type.String()
	}
	return strconv.Quote(tok.Lexeme)
}

// exp := or ("->" exp)?
func (p *parser) parseExp() (Exp, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != ARROW {
		return left, nil
	}
	p.advance()
	right, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	return &Implies{Left: left, Right: right}, nil
}

func (p *parser) parseOr() (Exp, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	exps := []Exp{first}
	for p.peek().Type == PIPE {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		exps = append(exps, next)
	}
	if len(exps) == 1 {
		return first, nil
	}
	return &Or{Exps: exps}, nil
}

func (p *parser) parseAnd() (Exp, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	exps := []Exp{first}
	for p.peek().Type == AMP {
		p.advance()
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		exps = append(exps, next)
	}
	if len(exps) == 1 {
		return first, nil
	}
	return &And{Exps: exps}, nil
}

func (p *parser) parseUnary() (Exp, error) {
	if p.peek().Type != TILDE {
		return p.parseAtom()
	}
	p.advance()
	inner, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &Not{Exp: inner}, nil
}

func (p *parser) parseAtom() (Exp, error) {
	tok := p.peek()
	switch tok.Type {
	case LPAREN:
		p.advance()
		e, err := p.parseExp()
		if err != nil {
			return nil, err
		}
		if err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case TRUE:
		p.advance()
		return &True{}, nil
	case FALSE:
		p.advance()
		return &False{}, nil
	case STAR:
		return p.parseLastWrite()
	case NAT:
		if p.peekAt(1).Type == COLON {
			return p.parseRegisterEq()
		}
	}
	return p.parseValue()
}

// T:REG = value
func (p *parser) parseRegisterEq() (Exp, error) {
	tidTok := p.advance()
	tid, err := strconv.ParseUint(tidTok.Lexeme, 10, 8)
	if err != nil {
		return nil, p.errorf(tidTok, "thread id %s out of range", tidTok.Lexeme)
	}
	p.advance() // :
	regTok := p.peek()
	if regTok.Type != IDENT {
		return nil, p.errorf(regTok, "expected register name, found %s", describe(regTok))
	}
	p.advance()
	reg := regTok.Lexeme
	if p.env.Registers != nil {
		resolved, err := p.env.Registers.ResolveRegister(reg)
		if err != nil {
			return nil, p.errorf(regTok, "%v", err)
		}
		reg = resolved
	}
	if err := p.expect(EQ); err != nil {
		return nil, err
	}
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &EqLoc{Loc: &Register{Thread: int(tid), Reg: reg}, Value: val}, nil
}

// *x = value
func (p *parser) parseLastWrite() (Exp, error) {
	p.advance() // *
	addrTok := p.peek()
	if addrTok.Type != IDENT {
		return nil, p.errorf(addrTok, "expected address name, found %s", describe(addrTok))
	}
	p.advance()
	bytes, ok := p.env.Sizeof[addrTok.Lexeme]
	if !ok {
		bytes = p.env.DefaultSizeof
	}
	if err := p.expect(EQ); err != nil {
		return nil, err
	}
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &EqLoc{Loc: &LastWriteTo{Address: addrTok.Lexeme, Bytes: bytes}, Value: val}, nil
}

// value := NAT | HEX | BIN | ID ["(" args ")"]
func (p *parser) parseValue() (Exp, error) {
	tok := p.peek()
	switch tok.Type {
	case NAT:
		p.advance()
		n, err := strconv.ParseUint(tok.Lexeme, 10, 64)
		if err != nil {
			return nil, p.errorf(tok, "number %s does not fit in 64 bits", tok.Lexeme)
		}
		return &Nat{Value: n}, nil
	case HEX:
		p.advance()
		return &Hex{Digits: tok.Lexeme}, nil
	case BIN:
		p.advance()
		return &Bin{Digits: tok.Lexeme}, nil
	case IDENT:
		p.advance()
		if p.peek().Type != LPAREN {
			return &Loc{Name: tok.Lexeme}, nil
		}
		return p.parseApp(tok.Lexeme)
	default:
		return nil, p.errorf(tok, "expected value, found %s", describe(tok))
	}
}

func (p *parser) parseApp(name string) (Exp, error) {
	p.advance() // (
	app := &App{Func: name, KwArgs: make(map[string]Exp)}
	if p.peek().Type == RPAREN {
		p.advance()
		return app, nil
	}
	for {
		if p.peek().Type == IDENT && p.peekAt(1).Type == EQ {
			kwTok := p.advance()
			p.advance() // =
			if _, dup := app.KwArgs[kwTok.Lexeme]; dup {
				return nil, p.errorf(kwTok, "duplicate keyword argument %s", kwTok.Lexeme)
			}
			val, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			app.KwArgs[kwTok.Lexeme] = val
		} else {
			val, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			app.Args = append(app.Args, val)
		}
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return app, nil
}
