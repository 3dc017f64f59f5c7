// Package pgtable turns a page_table_setup block into typed constraints.
package pgtable

import (
	"fmt"
	"strconv"
	"strings"
)

// Exp is an operand inside a setup constraint.
type Exp interface {
	fmt.Stringer
	pexp()
}

func (*Id) pexp()   {}
func (*Int) pexp()  {}
func (*Hex) pexp()  {}
func (*Bin) pexp()  {}
func (*Call) pexp() {}

type Id struct {
	Name string
}

func (e *Id) String() string { return e.Name }

type Int struct {
	Value uint64
}

func (e *Int) String() string { return strconv.FormatUint(e.Value, 10) }

// Hex keeps the literal text including its 0x prefix.
type Hex struct {
	Text string
}

func (e *Hex) String() string { return e.Text }

// Bin keeps the literal text including its 0b prefix.
type Bin struct {
	Text string
}

func (e *Bin) String() string { return e.Text }

type Call struct {
	Func string
	Args []Exp
}

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Func + "(" + strings.Join(args, ", ") + ")"
}

// Constraint is one statement of the setup.
type Constraint interface {
	fmt.Stringer
	constraint()
}

func (*Address) constraint()     {}
func (*Function) constraint()    {}
func (*Initial) constraint()     {}
func (*MapsTo) constraint()      {}
func (*Identity) constraint()    {}
func (*Option) constraint()      {}
func (*CustomTable) constraint() {}

type AddressKind int

const (
	Physical AddressKind = iota
	Virtual
	Intermediate
)

func (k AddressKind) String() string {
	switch k {
	case Physical:
		return "physical"
	case Virtual:
		return "virtual"
	case Intermediate:
		return "intermediate"
	default:
		return "unknown"
	}
}

// Address declares symbolic addresses of one kind, optionally aligned.
type Address struct {
	Kind  AddressKind
	Align uint64
	Names []string
}

func (c *Address) String() string {
	s := c.Kind.String() + " " + strings.Join(c.Names, " ")
	if c.Align != 0 {
		s = fmt.Sprintf("aligned %d %s", c.Align, s)
	}
	return s
}

// Function binds Name to the result of an address function, e.g.
// z = PAGE(x).
type Function struct {
	Name string
	Func string
	Args []Exp
}

func (c *Function) String() string {
	return c.Name + " = " + (&Call{Func: c.Func, Args: c.Args}).String()
}

// Initial sets the initial memory value at Loc: *x = v.
type Initial struct {
	Loc   Exp
	Value Exp
}

func (c *Initial) String() string {
	return "*" + c.Loc.String() + " = " + c.Value.String()
}

// MapsTo is a translation table entry From |-> To. Maybe marks the ?->
// form, which may or may not be mapped at runtime.
type MapsTo struct {
	From  Exp
	To    Exp
	Level int
	Maybe bool
	Attrs string
}

func (c *MapsTo) String() string {
	arrow := " |-> "
	if c.Maybe {
		arrow = " ?-> "
	}
	s := c.From.String() + arrow + c.To.String()
	if c.Level != DefaultLevel {
		s += fmt.Sprintf(" at level %d", c.Level)
	}
	if c.Attrs != "" {
		s += " with " + c.Attrs
	}
	return s
}

// Invalid reports whether the entry maps to the invalid descriptor.
func (c *MapsTo) Invalid() bool {
	id, ok := c.To.(*Id)
	return ok && id.Name == InvalidName
}

type Identity struct {
	Addr  Exp
	Attrs string
}

func (c *Identity) String() string {
	s := "identity " + c.Addr.String()
	if c.Attrs != "" {
		s += " with " + c.Attrs
	}
	return s
}

type Option struct {
	Name  string
	Value bool
}

func (c *Option) String() string {
	return fmt.Sprintf("option %s = %t", c.Name, c.Value)
}

// CustomTable is an s1table or s2table block. Its body is not interpreted.
type CustomTable struct {
	Stage int
	Name  string
}

func (c *CustomTable) String() string {
	return fmt.Sprintf("s%dtable %s", c.Stage, c.Name)
}

const (
	DefaultLevel = 3
	InvalidName  = "invalid"
)
