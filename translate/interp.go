package translate

import (
	"strconv"
	"strings"

	"github.com/colorfulnotion/litmus/exp"
	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/log"
	"github.com/colorfulnotion/litmus/types"
)

// Interpret reduces a value expression to a concrete MovSrc.
func Interpret(e exp.Exp) (types.MovSrc, error) {
	log.Trace(log.InterpMonitoring, "interpret", "exp", e)
	switch e := e.(type) {
	case *exp.Nat:
		return types.Nat{BV: types.NewBV64(e.Value, 64)}, nil
	case *exp.Hex:
		bv, err := immediate(e.Digits, 16)
		if err != nil {
			return nil, err
		}
		return types.Hex{BV: bv}, nil
	case *exp.Bin:
		bv, err := immediate(e.Digits, 2)
		if err != nil {
			return nil, err
		}
		return types.Bin{BV: bv}, nil
	case *exp.Bits64:
		return types.Bin{BV: types.NewBV64(e.Bits, 64)}, nil
	case *exp.Loc:
		return types.RegSrc{Name: e.Name}, nil
	case *exp.App:
		return interpretApp(e)
	default:
		return nil, litmuserrors.Wrap(litmuserrors.ErrParseResetValue, "cannot derive value from %s", e)
	}
}

// immediate parses a hex or binary literal used as a value. Immediates are
// always 64 bits wide whatever the number of digits.
func immediate(digits string, base int) (types.BV64, error) {
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return types.BV64{}, litmuserrors.Wrap(litmuserrors.ErrParseBits, "%v", err)
	}
	return types.NewBV64(n, 64), nil
}

// literalBits parses digits in the given radix, as used for the mask and
// width operands of bitvector functions. The width of the literal is
// the number of digits times the bits per digit, capped at 64.
func literalBits(digits string, base int, bitsPerDigit uint32) (types.BV64, error) {
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return types.BV64{}, litmuserrors.Wrap(litmuserrors.ErrParseBits, "%v", err)
	}
	return types.NewBV64(n, uint32(len(digits))*bitsPerDigit), nil
}

// bitsOf reads a literal operand such as the mask of bvand.
func bitsOf(e exp.Exp) (types.BV64, error) {
	switch e := e.(type) {
	case *exp.Nat:
		return types.NewBV64(e.Value, 64), nil
	case *exp.Hex:
		return literalBits(e.Digits, 16, 4)
	case *exp.Bin:
		return literalBits(e.Digits, 2, 1)
	case *exp.Bits64:
		return types.NewBV64(e.Bits, e.Len), nil
	default:
		return types.BV64{}, litmuserrors.Wrap(litmuserrors.ErrParseExp, "couldn't create bitvector from %s", e)
	}
}

func arg(app *exp.App, i int) (exp.Exp, error) {
	a, ok := app.Arg(i)
	if !ok {
		return nil, litmuserrors.Wrap(litmuserrors.ErrGetFunctionArg, "%s:arg%d", app.Func, i)
	}
	return a, nil
}

func locArg(app *exp.App, i int) (string, error) {
	a, err := arg(app, i)
	if err != nil {
		return "", err
	}
	loc, ok := a.(*exp.Loc)
	if !ok {
		return "", litmuserrors.Wrap(litmuserrors.ErrGetFunctionArg, "%s:arg%d must name a location, got %s", app.Func, i, a)
	}
	return loc.Name, nil
}

// binaryOps apply a transform between the operand and a literal.
var binaryOps = map[string]func(a, b types.BV64) types.BV64{
	"bvand":  types.BV64.And,
	"bvor":   types.BV64.Or,
	"bvxor":  types.BV64.Xor,
	"bvshl":  func(a, b types.BV64) types.BV64 { return a.Shl(b.Lower()) },
	"bvlshr": func(a, b types.BV64) types.BV64 { return a.Lshr(b.Lower()) },
}

func interpretApp(app *exp.App) (types.MovSrc, error) {
	if op, ok := binaryOps[app.Func]; ok {
		first, err := arg(app, 0)
		if err != nil {
			return nil, err
		}
		src, err := Interpret(first)
		if err != nil {
			return nil, err
		}
		second, err := arg(app, 1)
		if err != nil {
			return nil, err
		}
		operand, err := bitsOf(second)
		if err != nil {
			return nil, err
		}
		return types.Map(src, func(bv types.BV64) (types.BV64, error) {
			return op(bv, operand), nil
		})
	}

	switch {
	case app.Func == "extz":
		first, err := arg(app, 0)
		if err != nil {
			return nil, err
		}
		return Interpret(first)
	case app.Func == "exts":
		first, err := arg(app, 0)
		if err != nil {
			return nil, err
		}
		src, err := Interpret(first)
		if err != nil {
			return nil, err
		}
		second, err := arg(app, 1)
		if err != nil {
			return nil, err
		}
		width, err := bitsOf(second)
		if err != nil {
			return nil, err
		}
		if width.Lower() > 64 {
			return nil, litmuserrors.Wrap(litmuserrors.ErrParseExp, "exts to %d bits", width.Lower())
		}
		return types.Map(src, func(bv types.BV64) (types.BV64, error) {
			return bv.SignExtend(uint32(width.Lower()))
		})
	case app.Func == "page":
		sym, err := locArg(app, 0)
		if err != nil {
			return nil, err
		}
		return types.Page{Sym: sym}, nil
	case strings.HasPrefix(app.Func, "mkdesc"):
		lvl, err := tableLevel(app.Func, "mkdesc")
		if err != nil {
			return nil, err
		}
		oa, ok := app.KwArg("oa")
		if !ok {
			return nil, litmuserrors.Wrap(litmuserrors.ErrGetFunctionArg, "%s:arg_oa", app.Func)
		}
		loc, ok := oa.(*exp.Loc)
		if !ok {
			return nil, litmuserrors.Wrap(litmuserrors.ErrGetFunctionArg, "%s:arg_oa must name a location, got %s", app.Func, oa)
		}
		return types.Desc{Sym: loc.Name, Level: lvl}, nil
	case strings.HasPrefix(app.Func, "pte"):
		lvl, err := tableLevel(app.Func, "pte")
		if err != nil {
			return nil, err
		}
		sym, err := locArg(app, 0)
		if err != nil {
			return nil, err
		}
		return types.Pte{Sym: sym, Level: lvl}, nil
	case strings.HasPrefix(app.Func, "desc"):
		lvl, err := tableLevel(app.Func, "desc")
		if err != nil {
			return nil, err
		}
		sym, err := locArg(app, 0)
		if err != nil {
			return nil, err
		}
		return types.Desc{Sym: sym, Level: lvl}, nil
	default:
		return nil, litmuserrors.Wrap(litmuserrors.ErrUnimplementedFunction, "%s", app.Func)
	}
}

// tableLevel reads the level suffix of pte3, desc2, mkdesc1 and so on.
func tableLevel(fn, prefix string) (uint8, error) {
	lvl, err := strconv.Atoi(strings.TrimPrefix(fn, prefix))
	if err != nil {
		return 0, litmuserrors.Wrap(litmuserrors.ErrUnimplementedFunction, "%s", fn)
	}
	if lvl < 1 || lvl > 3 {
		return 0, litmuserrors.Wrap(litmuserrors.ErrUnimplementedFunction, "%s [lvl = %d] function not supported", prefix, lvl)
	}
	return uint8(lvl), nil
}
