package translate

import (
	"cmp"
	"slices"

	"github.com/colorfulnotion/litmus/exp"
	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/types"
)

// ThreadAssert is one compiled conjunct: a register of a thread must
// (not) hold a value.
type ThreadAssert struct {
	Thread int
	Reg    types.Reg
	Value  types.Negatable[types.MovSrc]
}

func registerOf(e *exp.EqLoc) (int, types.Reg, error) {
	r, ok := e.Loc.(*exp.Register)
	if !ok {
		return 0, types.Reg{}, litmuserrors.Unsupported("complex terms in final assertion (%s)", e)
	}
	reg, err := types.ParseReg(r.Reg)
	if err != nil {
		return 0, types.Reg{}, err
	}
	return r.Thread, reg, nil
}

// HistogramRegs collects every register the assertion reads, sorted by
// thread then register.
func HistogramRegs(e exp.Exp) ([]types.ThreadReg, error) {
	var regs []types.ThreadReg
	var walk func(e exp.Exp) error
	walk = func(e exp.Exp) error {
		switch e := e.(type) {
		case *exp.EqLoc:
			t, reg, err := registerOf(e)
			if err != nil {
				return err
			}
			regs = append(regs, types.ThreadReg{Thread: t, Reg: reg})
		case *exp.Not:
			return walk(e.Exp)
		case *exp.And:
			for _, c := range e.Exps {
				if err := walk(c); err != nil {
					return err
				}
			}
		case *exp.Or:
			for _, c := range e.Exps {
				if err := walk(c); err != nil {
					return err
				}
			}
		case *exp.Implies:
			if err := walk(e.Left); err != nil {
				return err
			}
			return walk(e.Right)
		default:
			return litmuserrors.Unsupported("complex terms in final assertion (%s)", e)
		}
		return nil
	}
	if err := walk(e); err != nil {
		return nil, err
	}
	slices.SortFunc(regs, compareThreadReg)
	return slices.CompactFunc(regs, func(a, b types.ThreadReg) bool {
		return compareThreadReg(a, b) == 0
	}), nil
}

func compareThreadReg(a, b types.ThreadReg) int {
	if c := cmp.Compare(a.Thread, b.Thread); c != 0 {
		return c
	}
	return a.Reg.Compare(b.Reg)
}

// CompileAssertion flattens a conjunction of register equalities and their
// negations. Conjuncts keep their first appearance order; a later conjunct
// on the same register replaces the earlier one in place.
func CompileAssertion(e exp.Exp) ([]ThreadAssert, error) {
	var out []ThreadAssert
	index := make(map[types.ThreadReg]int)
	add := func(eq *exp.EqLoc, negated bool) error {
		t, reg, err := registerOf(eq)
		if err != nil {
			return err
		}
		v, err := Interpret(eq.Value)
		if err != nil {
			return err
		}
		a := ThreadAssert{Thread: t, Reg: reg, Value: types.Negatable[types.MovSrc]{Value: v, Negated: negated}}
		key := types.ThreadReg{Thread: t, Reg: reg}
		if i, ok := index[key]; ok {
			out[i] = a
			return nil
		}
		index[key] = len(out)
		out = append(out, a)
		return nil
	}

	// negated flips at each Not; a conjunction under an odd number of
	// negations is a disjunction and cannot be compiled.
	var walk func(e exp.Exp, negated bool) error
	walk = func(e exp.Exp, negated bool) error {
		switch e := e.(type) {
		case *exp.EqLoc:
			return add(e, negated)
		case *exp.Not:
			return walk(e.Exp, !negated)
		case *exp.And:
			if negated {
				return litmuserrors.Unsupported("negation of %s in compiled assertion, use histogram mode", e)
			}
			for _, c := range e.Exps {
				if err := walk(c, false); err != nil {
					return err
				}
			}
			return nil
		default:
			return litmuserrors.Unsupported("%s in compiled assertion, use histogram mode", e)
		}
	}
	if err := walk(e, false); err != nil {
		return nil, err
	}
	return out, nil
}
