// Package types holds the intermediate representation of a translated
// litmus test.
package types

import (
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/colorfulnotion/litmus/exp"
)

// Mode selects how the final assertion reaches the harness.
type Mode int

const (
	// CompiledAssertion folds the assertion into one output register per
	// thread.
	CompiledAssertion Mode = iota
	// Histogram records every register the assertion mentions.
	Histogram
)

func (m Mode) String() string {
	if m == Histogram {
		return "histogram"
	}
	return "compiled"
}

// Litmus is a fully resolved test. It is built once and not modified
// afterwards.
type Litmus struct {
	Arch               string
	Name               string
	PageTableSetup     string
	Threads            []Thread
	SyncHandlers       []ThreadSyncHandler
	VarNames           []string
	AdditionalVarNames []string
	Regs               []ThreadReg
	FinalAssertionText string
	FinalAssertion     exp.Exp
	MMUOn              bool
	InitState          []InitState
}

type ThreadReg struct {
	Thread int
	Reg    Reg
}

type Thread struct {
	Name     string
	ID       int
	Code     string
	EL       uint8
	Clobbers RegSet
	VBarEL1  *BV64
	Reset    map[Reg]MovSrc
	// Assert is only meaningful when Compiled is set.
	Assert   []RegAssert
	Compiled bool
}

// SortedReset returns the reset registers in Reg.Compare order.
func (t *Thread) SortedReset() []Reg {
	regs := maps.Keys(t.Reset)
	slices.SortFunc(regs, Reg.Compare)
	return regs
}

type ThreadEL struct {
	Thread int
	EL     uint8
}

type ThreadSyncHandler struct {
	Name      string
	Code      string
	Clobbers  RegSet
	ThreadELs []ThreadEL
}

// Negatable is a value that a register must equal, or must not equal when
// Negated.
type Negatable[T any] struct {
	Value   T
	Negated bool
}

func Eq[T any](v T) Negatable[T]  { return Negatable[T]{Value: v} }
func Not[T any](v T) Negatable[T] { return Negatable[T]{Value: v, Negated: true} }

func (n Negatable[T]) String() string {
	if n.Negated {
		return fmt.Sprintf("Not(%v)", n.Value)
	}
	return fmt.Sprintf("Eq(%v)", n.Value)
}

type RegAssert struct {
	Reg   Reg
	Value Negatable[MovSrc]
}

// InitState is one line of the harness INIT_STATE macro.
type InitState interface {
	Symbol() string
	initState()
}

func (Unmapped) initState() {}
func (Var) initState()      {}
func (Alias) initState()    {}

type Unmapped struct{ Sym string }

type Var struct {
	Sym   string
	Value string
}

// Alias makes Sym share the physical backing of Target.
type Alias struct {
	Sym    string
	Target string
}

func (s Unmapped) Symbol() string { return s.Sym }
func (s Var) Symbol() string      { return s.Sym }
func (s Alias) Symbol() string    { return s.Sym }

func (s Unmapped) String() string { return "INIT_UNMAPPED(" + s.Sym + ")" }
func (s Var) String() string      { return "INIT_VAR(" + s.Sym + ", " + s.Value + ")" }
func (s Alias) String() string    { return "INIT_ALIAS(" + s.Sym + ", " + s.Target + ")" }
