// Package exp is the expression language of litmus tests: final assertions
// over thread registers and memory, and the value expressions used for
// register resets and handler addresses.
package exp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Exp is a node of a parsed expression.
type Exp interface {
	fmt.Stringer
	exp()
}

func (*EqLoc) exp()   {}
func (*Not) exp()     {}
func (*And) exp()     {}
func (*Or) exp()      {}
func (*Implies) exp() {}
func (*True) exp()    {}
func (*False) exp()   {}
func (*Nat) exp()     {}
func (*Hex) exp()     {}
func (*Bin) exp()     {}
func (*Bits64) exp()  {}
func (*Loc) exp()     {}
func (*App) exp()     {}

// Location is the left hand side of an equality leaf.
type Location interface {
	fmt.Stringer
	location()
}

func (*Register) location()    {}
func (*LastWriteTo) location() {}

// Register names a register of a thread, e.g. 1:X0. Reg holds the name as it
// appears in the architecture symbol table.
type Register struct {
	Thread int
	Reg    string
}

func (r *Register) String() string {
	return fmt.Sprintf("%d:%s", r.Thread, r.Reg)
}

// LastWriteTo is the final value in memory at a symbolic address, *x.
type LastWriteTo struct {
	Address string
	Bytes   uint32
}

func (l *LastWriteTo) String() string {
	return "*" + l.Address
}

type EqLoc struct {
	Loc   Location
	Value Exp
}

func (e *EqLoc) String() string {
	return fmt.Sprintf("%s = %s", e.Loc, e.Value)
}

type Not struct {
	Exp Exp
}

func (e *Not) String() string {
	return "~" + wrap(e.Exp)
}

type And struct {
	Exps []Exp
}

func (e *And) String() string {
	return join(e.Exps, " & ")
}

type Or struct {
	Exps []Exp
}

func (e *Or) String() string {
	return join(e.Exps, " | ")
}

type Implies struct {
	Left, Right Exp
}

func (e *Implies) String() string {
	return wrap(e.Left) + " -> " + wrap(e.Right)
}

type True struct{}

func (*True) String() string { return "true" }

type False struct{}

func (*False) String() string { return "false" }

type Nat struct {
	Value uint64
}

func (e *Nat) String() string {
	return strconv.FormatUint(e.Value, 10)
}

// Hex holds the digits of a hexadecimal literal without the 0x prefix.
type Hex struct {
	Digits string
}

func (e *Hex) String() string {
	return "0x" + e.Digits
}

// Bin holds the digits of a binary literal without the 0b prefix.
type Bin struct {
	Digits string
}

func (e *Bin) String() string {
	return "0b" + e.Digits
}

// Bits64 is a literal of an explicit width.
type Bits64 struct {
	Bits uint64
	Len  uint32
}

func (e *Bits64) String() string {
	return fmt.Sprintf("0x%x:%d", e.Bits, e.Len)
}

// Loc is a bare reference to a symbolic location.
type Loc struct {
	Name string
}

func (e *Loc) String() string {
	return e.Name
}

// App is a function application, e.g. pte3(x) or mkdesc3(oa=pa1).
type App struct {
	Func   string
	Args   []Exp
	KwArgs map[string]Exp
}

func (e *App) String() string {
	parts := make([]string, 0, len(e.Args)+len(e.KwArgs))
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	keys := make([]string, 0, len(e.KwArgs))
	for k := range e.KwArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+e.KwArgs[k].String())
	}
	return e.Func + "(" + strings.Join(parts, ", ") + ")"
}

// Arg returns the i-th positional argument.
func (e *App) Arg(i int) (Exp, bool) {
	if i < 0 || i >= len(e.Args) {
		return nil, false
	}
	return e.Args[i], true
}

// KwArg returns the keyword argument named kw.
func (e *App) KwArg(kw string) (Exp, bool) {
	v, ok := e.KwArgs[kw]
	return v, ok
}

func join(exps []Exp, sep string) string {
	parts := make([]string, len(exps))
	for i, e := range exps {
		parts[i] = wrap(e)
	}
	return strings.Join(parts, sep)
}

func wrap(e Exp) string {
	switch e.(type) {
	case *And, *Or, *Implies, *EqLoc:
		return "(" + e.String() + ")"
	default:
		return e.String()
	}
}
