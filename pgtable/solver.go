package pgtable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/colorfulnotion/litmus/isa"
	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/log"
)

// Solver turns a test's page_table_setup text into typed constraints.
type Solver interface {
	Solve(setup string, cfg *isa.Config) ([]Constraint, error)
}

// SetupError is a syntax error located in the test's own setup text.
// Line and Column are 1-based; both are 0 when the error lies in the ISA's
// default setup.
type SetupError struct {
	Line   int
	Column int
	Msg    string
	Text   string
}

func (e *SetupError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("in default page table setup: %s", e.Msg)
	}
	return fmt.Sprintf("line %d, column %d: %s\n%s", e.Line, e.Column, e.Msg, e.Text)
}

func (e *SetupError) Unwrap() error {
	return litmuserrors.ErrPageTableSetup
}

// DefaultSolver parses the setup DSL with the ISA default setup prepended.
type DefaultSolver struct{}

func (DefaultSolver) Solve(setup string, cfg *isa.Config) ([]Constraint, error) {
	prefix := ""
	if cfg != nil {
		prefix = cfg.DefaultPageTableSetup
	}
	constraints, err := parseSetup(prefix + setup)
	if err != nil {
		var se *syntaxError
		if errors.As(err, &se) {
			return nil, locate(setup, se.offset-len(prefix), se.msg)
		}
		return nil, litmuserrors.Wrap(litmuserrors.ErrPageTableSetup, "%v", err)
	}
	log.Trace(log.ParseMonitoring, "page table setup", "constraints", len(constraints))
	return constraints, nil
}

// locate converts a byte offset in setup into a SetupError with a caret
// line pointing at the failure.
func locate(setup string, offset int, msg string) *SetupError {
	if offset < 0 {
		return &SetupError{Msg: msg}
	}
	if offset > len(setup) {
		offset = len(setup)
	}
	line := 1 + strings.Count(setup[:offset], "\n")
	lineStart := strings.LastIndex(setup[:offset], "\n") + 1
	lineEnd := strings.IndexByte(setup[offset:], '\n')
	if lineEnd < 0 {
		lineEnd = len(setup)
	} else {
		lineEnd += offset
	}
	col := offset - lineStart + 1
	text := setup[lineStart:lineEnd] + "\n" + strings.Repeat(" ", col-1) + "^"
	return &SetupError{Line: line, Column: col, Msg: msg, Text: text}
}

// UsesCustomTables reports whether constraints opt out of the default
// translation tables.
func UsesCustomTables(constraints []Constraint) bool {
	for _, c := range constraints {
		switch c := c.(type) {
		case *Option:
			if c.Name == "default_tables" && !c.Value {
				return true
			}
		case *CustomTable:
			return true
		}
	}
	return false
}
