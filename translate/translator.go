// Package translate turns a symbolic litmus TOML test into the resolved
// intermediate representation in package types.
package translate

import (
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/colorfulnotion/litmus/exp"
	"github.com/colorfulnotion/litmus/isa"
	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/log"
	"github.com/colorfulnotion/litmus/pgtable"
	"github.com/colorfulnotion/litmus/types"
)

// C type names accepted in the [types] table, with their sizes in bytes.
var typeSizes = map[string]uint32{
	"uint8_t":  1,
	"int8_t":   1,
	"uint16_t": 2,
	"int16_t":  2,
	"uint32_t": 4,
	"int32_t":  4,
	"uint64_t": 8,
	"int64_t":  8,
}

// Translator holds the read-only state shared by every translation. It is
// safe for concurrent use.
type Translator struct {
	isa    *isa.Context
	solver pgtable.Solver
}

type Option func(*Translator)

// WithSolver replaces the page table setup solver.
func WithSolver(s pgtable.Solver) Option {
	return func(tr *Translator) { tr.solver = s }
}

func NewTranslator(ctx *isa.Context, opts ...Option) *Translator {
	tr := &Translator{isa: ctx, solver: pgtable.DefaultSolver{}}
	for _, o := range opts {
		o(tr)
	}
	return tr
}

func (tr *Translator) ISA() *isa.Context {
	return tr.isa
}

// Parse translates the TOML text of one test.
func (tr *Translator) Parse(contents string, mode types.Mode) (*types.Litmus, error) {
	var doc map[string]any
	if _, err := toml.Decode(contents, &doc); err != nil {
		return nil, litmuserrors.Wrap(litmuserrors.ErrParseToml, "%v", err)
	}

	arch := "unknown"
	if a, ok := doc["arch"].(string); ok {
		arch = a
	}
	name, ok := doc["name"].(string)
	if !ok {
		return nil, litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "name")
	}

	symbolic, err := stringList(doc, "symbolic", "addresses")
	if err != nil {
		return nil, err
	}

	l := &types.Litmus{Arch: arch, Name: name, VarNames: symbolic}

	if err := tr.pageTables(l, doc); err != nil {
		return nil, err
	}

	threads, err := parseThreads(doc["thread"])
	if err != nil {
		return nil, err
	}
	l.Threads = threads

	if err := tr.finalAssertion(l, doc, mode); err != nil {
		return nil, err
	}

	handlers, err := parseSyncHandlers(doc["section"], l.Threads)
	if err != nil {
		return nil, err
	}
	l.SyncHandlers = handlers

	log.Debug(log.ParseMonitoring, "translated test", "name", l.Name, "threads", len(l.Threads), "handlers", len(l.SyncHandlers), "mode", mode)
	return l, nil
}

// stringList reads the first present key among keys as a list of strings.
func stringList(doc map[string]any, keys ...string) ([]string, error) {
	for _, key := range keys {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "%s is not a list", key)
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "%s contains %v", key, it)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "%s", keys[0])
}

func (tr *Translator) pageTables(l *types.Litmus, doc map[string]any) error {
	raw, ok := doc["page_table_setup"]
	if !ok {
		for _, v := range l.VarNames {
			l.InitState = append(l.InitState, types.Var{Sym: v, Value: "0"})
		}
		return nil
	}
	if _, ok := doc["locations"]; ok {
		return litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "locations cannot be combined with page_table_setup")
	}
	setup, ok := raw.(string)
	if !ok {
		return litmuserrors.Wrap(litmuserrors.ErrPageTableSetup, "page_table_setup is not a string")
	}
	l.MMUOn = true
	l.PageTableSetup = setup

	cfg := tr.isa.Config()
	constraints, err := tr.solver.Solve(setup, &cfg)
	if err != nil {
		return err
	}
	if pgtable.UsesCustomTables(constraints) {
		return litmuserrors.Unsupported("custom translation tables")
	}

	directives, physical := GenInitState(constraints)
	states, err := ResolveBacking(directives, physical, l.VarNames)
	if err != nil {
		return err
	}
	l.InitState = states

	additional, err := AdditionalVars(constraints, l.VarNames)
	if err != nil {
		return err
	}
	l.AdditionalVarNames = additional
	return nil
}

func (tr *Translator) env(doc map[string]any) (*exp.Env, error) {
	env := &exp.Env{
		Registers:     tr.isa,
		Sizeof:        make(map[string]uint32),
		DefaultSizeof: tr.isa.DefaultSizeof(),
	}
	raw, ok := doc["types"]
	if !ok {
		return env, nil
	}
	table, ok := raw.(map[string]any)
	if !ok {
		return nil, litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "types is not a table")
	}
	for sym, v := range table {
		name, ok := v.(string)
		if !ok {
			return nil, litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "type of %s is not a string", sym)
		}
		size, ok := typeSizes[name]
		if !ok {
			return nil, litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "unknown type %s for %s", name, sym)
		}
		env.Sizeof[sym] = size
	}
	return env, nil
}

func (tr *Translator) finalAssertion(l *types.Litmus, doc map[string]any, mode types.Mode) error {
	final, ok := doc["final"].(map[string]any)
	if !ok {
		return litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "final")
	}
	text, ok := final["assertion"].(string)
	if !ok {
		return litmuserrors.Wrap(litmuserrors.ErrGetTomlValue, "final.assertion")
	}
	env, err := tr.env(doc)
	if err != nil {
		return err
	}
	assertion, err := exp.ParseAssertion(text, env)
	if err != nil {
		return litmuserrors.Wrap(litmuserrors.ErrParseFinalAssertion, "%v", err)
	}
	l.FinalAssertionText = text
	l.FinalAssertion = assertion

	switch mode {
	case types.Histogram:
		regs, err := HistogramRegs(assertion)
		if err != nil {
			return err
		}
		if err := checkThreads(regs, len(l.Threads)); err != nil {
			return err
		}
		l.Regs = regs
	default:
		asserts, err := CompileAssertion(assertion)
		if err != nil {
			return err
		}
		var threads []int
		for _, a := range asserts {
			if a.Thread >= len(l.Threads) {
				return litmuserrors.Wrap(litmuserrors.ErrUnknownThread, "%d", a.Thread)
			}
			t := &l.Threads[a.Thread]
			t.Assert = append(t.Assert, types.RegAssert{Reg: a.Reg, Value: a.Value})
			threads = append(threads, a.Thread)
		}
		for i := range l.Threads {
			l.Threads[i].Compiled = true
		}
		slices.Sort(threads)
		for _, t := range slices.Compact(threads) {
			l.Regs = append(l.Regs, types.ThreadReg{Thread: t, Reg: types.X(0)})
		}
	}
	return nil
}

func checkThreads(regs []types.ThreadReg, n int) error {
	for _, r := range regs {
		if r.Thread >= n {
			return litmuserrors.Wrap(litmuserrors.ErrUnknownThread, "%d", r.Thread)
		}
	}
	return nil
}

