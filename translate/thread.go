package translate

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/colorfulnotion/litmus/exp"
	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/log"
	"github.com/colorfulnotion/litmus/types"
)

// Offsets of the synchronous exception vectors from VBAR_EL1.
const (
	vectorCurrentELSP0 = 0x000
	vectorCurrentELSPx = 0x200
	vectorLowerA64     = 0x400
	vectorLowerA32     = 0x600
)

// parseThreads reads the [thread.N] tables, ordered by N. Thread ids must
// be 0..n-1.
func parseThreads(raw any) ([]types.Thread, error) {
	table, ok := raw.(map[string]any)
	if !ok {
		return nil, litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "thread is not a table")
	}
	ids := make([]int, 0, len(table))
	byID := make(map[int]string, len(table))
	for name := range table {
		id, err := strconv.Atoi(name)
		if err != nil || id < 0 {
			return nil, litmuserrors.Wrap(litmuserrors.ErrParseThread, "thread name %q is not a number", name)
		}
		ids = append(ids, id)
		byID[id] = name
	}
	slices.Sort(ids)
	threads := make([]types.Thread, 0, len(ids))
	for i, id := range ids {
		if id != i {
			return nil, litmuserrors.Wrap(litmuserrors.ErrParseThread, "thread ids must be 0..%d, missing %d", len(ids)-1, i)
		}
		name := byID[id]
		t, err := parseThread(name, id, table[name])
		if err != nil {
			return nil, fmt.Errorf("thread %s: %w", name, err)
		}
		threads = append(threads, t)
	}
	return threads, nil
}

func parseThread(name string, id int, raw any) (types.Thread, error) {
	t := types.Thread{Name: name, ID: id, Reset: make(map[types.Reg]types.MovSrc)}
	table, ok := raw.(map[string]any)
	if !ok {
		return t, litmuserrors.Wrap(litmuserrors.ErrParseThread, "not a table")
	}
	if _, ok := table["call"]; ok {
		return t, litmuserrors.Unsupported("call threads")
	}
	code, ok := table["code"].(string)
	if !ok {
		return t, litmuserrors.Wrap(litmuserrors.ErrParseThread, "no code found")
	}
	t.Code = code
	clobbers, err := types.ParseRegsFromAsm(code)
	if err != nil {
		return t, err
	}
	t.Clobbers = clobbers

	// init is applied first so reset can override it
	special := make(map[types.Reg]types.MovSrc)
	for _, key := range []string{"init", "reset"} {
		section, ok := table[key]
		if !ok {
			continue
		}
		values, ok := section.(map[string]any)
		if !ok {
			return t, litmuserrors.Wrap(litmuserrors.ErrParseThread, "%s is not a table", key)
		}
		for regName, v := range values {
			reg, err := types.ParseReg(regName)
			if err != nil {
				return t, err
			}
			src, err := resetValue(reg, v)
			if err != nil {
				return t, err
			}
			if reg.Special() {
				special[reg] = src
			} else {
				t.Reset[reg] = src
			}
		}
	}

	if src, ok := special[types.PStateEL]; ok {
		bits, err := types.Bits(src)
		if err != nil {
			return t, litmuserrors.Wrap(litmuserrors.ErrParseThread, "Invalid EL level %s", src)
		}
		switch el := bits.Lower(); {
		case el > 3:
			return t, litmuserrors.Unsupported("exception level %d", el)
		case el > 1:
			log.Warn(log.ParseMonitoring, "EL > 1 not allowed", "thread", name, "el", el)
		}
		t.EL = uint8(bits.Lower())
	}
	if _, ok := special[types.VBarEL2]; ok {
		return t, litmuserrors.Unsupported("VBAR_EL2")
	}
	if src, ok := special[types.VBarEL1]; ok {
		bits, err := types.Bits(src)
		if err != nil {
			return t, litmuserrors.Wrap(litmuserrors.ErrParseThread, "VBAR_EL1 must be an immediate, got %s", src)
		}
		t.VBarEL1 = &bits
	}
	log.Debug(log.ParseMonitoring, "parsed thread", "thread", name, "el", t.EL, "reset", len(t.Reset))
	return t, nil
}

// resetValue converts a TOML register value. Strings are value expressions,
// integers are taken as naturals.
func resetValue(reg types.Reg, v any) (types.MovSrc, error) {
	if reg.Kind == types.KindIsla {
		if s, ok := v.(string); ok {
			return types.RegSrc{Name: s}, nil
		}
		return types.RegSrc{Name: fmt.Sprint(v)}, nil
	}
	switch v := v.(type) {
	case string:
		e, err := exp.ParseValue(v)
		if err != nil {
			return nil, litmuserrors.Wrap(litmuserrors.ErrParseResetValue, "%s = %q: %v", reg, v, err)
		}
		return Interpret(e)
	case int64:
		if v < 0 {
			return Interpret(&exp.Bits64{Bits: uint64(v), Len: 64})
		}
		return Interpret(&exp.Nat{Value: uint64(v)})
	default:
		return nil, litmuserrors.Wrap(litmuserrors.ErrParseResetValue, "%s has unsupported value %v", reg, v)
	}
}

// parseSyncHandlers reads the entries of the section table that carry an
// address. A handler is attached to every thread whose VBAR_EL1 places the
// address on a synchronous vector.
func parseSyncHandlers(raw any, threads []types.Thread) ([]types.ThreadSyncHandler, error) {
	if raw == nil {
		return nil, nil
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "Thread sync handler is not a table")
	}
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	slices.Sort(names)

	var handlers []types.ThreadSyncHandler
	for _, name := range names {
		table, ok := doc[name].(map[string]any)
		if !ok {
			continue
		}
		rawAddr, ok := table["address"]
		if !ok {
			continue
		}
		addr, err := handlerAddress(rawAddr)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", name, err)
		}
		code, ok := table["code"].(string)
		if !ok {
			return nil, litmuserrors.Wrap(litmuserrors.ErrParseSyncHandler, "No code found for handler %s", name)
		}
		clobbers, err := types.ParseRegsFromAsm(code)
		if err != nil {
			return nil, err
		}

		h := types.ThreadSyncHandler{Name: name, Code: code, Clobbers: clobbers}
		for _, t := range threads {
			if t.VBarEL1 == nil {
				continue
			}
			switch addr.Sub(*t.VBarEL1).Lower() {
			case vectorCurrentELSP0, vectorCurrentELSPx:
				h.ThreadELs = append(h.ThreadELs, types.ThreadEL{Thread: t.ID, EL: 1})
			case vectorLowerA64, vectorLowerA32:
				h.ThreadELs = append(h.ThreadELs, types.ThreadEL{Thread: t.ID, EL: 0})
			}
		}
		log.Debug(log.ParseMonitoring, "parsed sync handler", "handler", name, "threads", len(h.ThreadELs))
		handlers = append(handlers, h)
	}
	return handlers, nil
}

func handlerAddress(v any) (types.BV64, error) {
	var src types.MovSrc
	switch v := v.(type) {
	case string:
		e, err := exp.ParseValue(v)
		if err != nil {
			return types.BV64{}, litmuserrors.Wrap(litmuserrors.ErrParseSyncHandler, "address %q: %v", v, err)
		}
		if src, err = Interpret(e); err != nil {
			return types.BV64{}, err
		}
	case int64:
		src = types.Nat{BV: types.NewBV64(uint64(v), 64)}
	default:
		return types.BV64{}, litmuserrors.Wrap(litmuserrors.ErrParseSyncHandler, "address %v is not a value", v)
	}
	bits, err := types.Bits(src)
	if err != nil {
		return types.BV64{}, litmuserrors.Wrap(litmuserrors.ErrParseSyncHandler, "address %s must be an immediate", src)
	}
	return bits, nil
}
