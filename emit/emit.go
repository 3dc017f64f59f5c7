// Package emit renders a translated test as a C source file for the
// system-litmus-harness.
package emit

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/log"
	"github.com/colorfulnotion/litmus/types"
)

const includes = `#include "lib.h"`

// SanitisedName maps a test name onto a C identifier. '+', '-' and '.'
// become '_'; any other non alphanumeric character does too, with a
// warning.
func SanitisedName(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c == '+' || c == '-' || c == '.':
			b.WriteByte('_')
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			log.Warn(log.EmitMonitoring, "found unexpected char in test name", "char", strconv.QuoteRune(c), "name", name)
			b.WriteByte('_')
		}
	}
	return b.String()
}

// asmLines quotes each non blank line of a block of assembly as a C string
// literal ending in "\n\t".
func asmLines(code string) string {
	var b strings.Builder
	for _, ln := range strings.Split(code, "\n") {
		if trimmed := strings.TrimSpace(ln); trimmed != "" {
			fmt.Fprintf(&b, "    \"%s\\n\\t\"\n", trimmed)
		}
	}
	return strings.TrimSpace(b.String())
}

func sortedJoin(set map[string]struct{}) string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

// operandGroups lists the harness operand macros in output order.
var operandGroups = []string{"VAs", "PTEs", "PAGEs", "DESCs", "PMDs", "PUDs", "PMDDESCs", "PUDDESCs"}

func operandGroup(src types.MovSrc) (string, string, bool) {
	switch s := src.(type) {
	case types.RegSrc:
		return "VAs", s.Name, true
	case types.Page:
		return "PAGEs", s.Sym, true
	case types.Pte:
		switch s.Level {
		case 1:
			return "PUDs", s.Sym, true
		case 2:
			return "PMDs", s.Sym, true
		default:
			return "PTEs", s.Sym, true
		}
	case types.Desc:
		switch s.Level {
		case 1:
			return "PUDDESCs", s.Sym, true
		case 2:
			return "PMDDESCs", s.Sym, true
		default:
			return "DESCs", s.Sym, true
		}
	}
	return "", "", false
}

// asmSubs builds the input operand list of a thread's asm block.
func asmSubs(t *types.Thread, mode types.Mode) string {
	groups := make(map[string]map[string]struct{})
	for reg, val := range t.Reset {
		if reg.Kind == types.KindIsla {
			continue
		}
		g, sym, ok := operandGroup(val)
		if !ok {
			continue
		}
		if groups[g] == nil {
			groups[g] = make(map[string]struct{})
		}
		groups[g][sym] = struct{}{}
	}

	var subs []string
	for _, g := range operandGroups {
		if set, ok := groups[g]; ok {
			subs = append(subs, fmt.Sprintf("ASM_VAR_%s(data, %s)", g, sortedJoin(set)))
		}
	}
	if mode == types.Histogram {
		subs = append(subs, "ASM_REGS(data, REGS)")
	} else if len(t.Assert) > 0 {
		subs = append(subs, `[tmpout] "r" (tmpout)`)
	}
	return strings.Join(subs, ",\n    ")
}

func writeThread(l *types.Litmus, t *types.Thread, handlerClobbers types.RegSet, mode types.Mode) (string, error) {
	compiled := mode == types.CompiledAssertion

	assertSetup := ""
	if compiled && len(t.Assert) > 0 {
		assertSetup = "\n  u64 tmpout[32] = {0};"
	}

	regSetup := ""
	if len(t.Reset) > 0 {
		var movs []string
		for _, reg := range t.SortedReset() {
			if reg.Kind == types.KindIsla {
				continue
			}
			dst, err := reg.AsAsm()
			if err != nil {
				return "", err
			}
			src, err := types.AsAsm(t.Reset[reg])
			if err != nil {
				return "", err
			}
			movs = append(movs, fmt.Sprintf("\"mov %s, %s\\n\\t\"", dst, src))
		}
		regSetup = "\n    /* initial registers */\n    " + strings.Join(movs, "\n    ") + "\n"
	}

	var stores []string
	if compiled {
		for _, a := range t.Assert {
			asm, err := a.Reg.AsAsm()
			if err != nil {
				return "", err
			}
			idx, err := a.Reg.Idx()
			if err != nil {
				return "", err
			}
			stores = append(stores, fmt.Sprintf("\"str %s, [%%[tmpout],#%d]\\n\\t\"", asm, int(idx)*8))
		}
	} else {
		for _, tr := range l.Regs {
			if tr.Thread != t.ID {
				continue
			}
			asm, err := tr.Reg.AsAsm()
			if err != nil {
				return "", err
			}
			out, err := tr.Reg.OutputName(tr.Thread)
			if err != nil {
				return "", err
			}
			stores = append(stores, fmt.Sprintf("\"str %s, [%%[%s]]\\n\\t\"", asm, out))
		}
	}
	output := ""
	if len(stores) > 0 {
		output = "\n\n    /* output */\n    " + strings.Join(stores, "\n    ")
	}

	clobbers := types.NewRegSet()
	clobbers.Union(t.Clobbers)
	clobbers.Union(handlerClobbers)
	quoted := make([]string, 0, len(clobbers))
	for _, r := range clobbers.Sorted() {
		asm, err := r.AsAsm()
		if err != nil {
			return "", err
		}
		quoted = append(quoted, strconv.Quote(asm))
	}
	clobberList := `"cc", "memory"`
	if len(quoted) > 0 {
		clobberList += ", " + strings.Join(quoted, ", ")
	}

	compiledAssert := ""
	if compiled && len(t.Assert) > 0 {
		var conds []string
		for _, a := range t.Assert {
			idx, err := a.Reg.Idx()
			if err != nil {
				return "", err
			}
			val, err := types.AsCCode(a.Value.Value)
			if err != nil {
				return "", err
			}
			op := "=="
			if a.Value.Negated {
				op = "!="
			}
			conds = append(conds, fmt.Sprintf("(tmpout[%d] %s %s)", idx, op, val))
		}
		compiledAssert = fmt.Sprintf("\n\n  /* compile assertion into single register */\n  *out_reg(data, \"p%d:x0\") = %s;", t.ID, strings.Join(conds, " & "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "static void P%d(litmus_test_run* data) {", t.ID)
	b.WriteString(assertSetup)
	b.WriteString("\n  asm volatile (")
	b.WriteString(regSetup)
	b.WriteString("\n    /* test */\n    ")
	b.WriteString(asmLines(t.Code))
	b.WriteString(output)
	b.WriteString("\n  :\n  : ")
	b.WriteString(asmSubs(t, mode))
	b.WriteString("\n  : ")
	b.WriteString(clobberList)
	b.WriteString("\n  );")
	b.WriteString(compiledAssert)
	b.WriteString("\n}")
	return b.String(), nil
}

func writeHandler(h *types.ThreadSyncHandler) string {
	served := make([]string, len(h.ThreadELs))
	for i, te := range h.ThreadELs {
		served[i] = fmt.Sprintf("%d (EL%d)", te.Thread, te.EL)
	}
	return fmt.Sprintf("// Thread sync handler for thread %s\nstatic void %s(void) {\n  asm volatile (\n    %s\n  );\n}",
		strings.Join(served, ", "), h.Name, asmLines(h.Code))
}

// handlerRefs is the [thread][el] table of handler entry points.
func handlerRefs(l *types.Litmus) (string, error) {
	refs := make([][2]string, len(l.Threads))
	for i := range refs {
		refs[i] = [2]string{"NULL", "NULL"}
	}
	for _, h := range l.SyncHandlers {
		for _, te := range h.ThreadELs {
			if te.Thread >= len(refs) || te.EL > 1 {
				return "", litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "handler %s for thread %d at EL%d", h.Name, te.Thread, te.EL)
			}
			refs[te.Thread][te.EL] = "(u32*)" + h.Name
		}
	}
	lines := make([]string, len(refs))
	for i, r := range refs {
		lines[i] = fmt.Sprintf("(u32*[]){%s, %s},", r[0], r[1])
	}
	return ".thread_sync_handlers = (u32**[]){\n    " + strings.Join(lines, "\n    ") + "\n  },", nil
}

func initStateBlock(states []types.InitState) string {
	if len(states) == 0 {
		return ""
	}
	var unmapped, vars, aliases []string
	for _, s := range states {
		switch s := s.(type) {
		case types.Unmapped:
			unmapped = append(unmapped, s.String())
		case types.Var:
			vars = append(vars, s.String())
		case types.Alias:
			aliases = append(aliases, s.String())
		}
	}
	slices.Sort(unmapped)
	slices.Sort(vars)
	slices.Sort(aliases)
	all := slices.Concat(unmapped, vars, aliases)
	return fmt.Sprintf("\n    %d,\n    %s,\n  ", len(states), strings.Join(all, ",\n    "))
}

func startELs(threads []types.Thread) string {
	if len(threads) == 1 {
		return strconv.Itoa(int(threads[0].EL)) + ","
	}
	els := make([]string, len(threads))
	for i, t := range threads {
		els[i] = strconv.Itoa(int(t.EL))
	}
	return strings.Join(els, ",")
}

// Write renders l as harness C source.
func Write(l *types.Litmus, mode types.Mode) (string, error) {
	regs := make([]string, len(l.Regs))
	for i, tr := range l.Regs {
		asm, err := tr.Reg.AsAsm()
		if err != nil {
			return "", err
		}
		regs[i] = fmt.Sprintf("p%d%s", tr.Thread, asm)
	}

	handlerClobbers := make(map[int]types.RegSet)
	for _, h := range l.SyncHandlers {
		for _, te := range h.ThreadELs {
			if handlerClobbers[te.Thread] == nil {
				handlerClobbers[te.Thread] = types.NewRegSet()
			}
			handlerClobbers[te.Thread].Union(h.Clobbers)
		}
	}

	threads := make([]string, len(l.Threads))
	for i := range l.Threads {
		t := &l.Threads[i]
		s, err := writeThread(l, t, handlerClobbers[t.ID], mode)
		if err != nil {
			return "", fmt.Errorf("thread %s: %w", t.Name, err)
		}
		threads[i] = s
	}

	handlers := make([]string, len(l.SyncHandlers))
	for i := range l.SyncHandlers {
		handlers[i] = writeHandler(&l.SyncHandlers[i])
	}
	refs, err := handlerRefs(l)
	if err != nil {
		return "", err
	}

	additional := ""
	if len(l.AdditionalVarNames) > 0 {
		additional = ", " + strings.Join(l.AdditionalVarNames, ", ")
	}
	interesting := ""
	if mode == types.CompiledAssertion {
		ones := slices.Repeat([]string{"1"}, len(l.Regs))
		interesting = fmt.Sprintf("\n  .interesting_result = (uint64_t[]){%s},", strings.Join(ones, ","))
	}
	requiresPgtable := 0
	if l.MMUOn {
		requiresPgtable = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// %s [litmus-toml-translator]\n\n", l.Name)
	fmt.Fprintf(&b, "%s\n\n", includes)
	fmt.Fprintf(&b, "#define VARS %s\n", strings.Join(l.VarNames, ", "))
	fmt.Fprintf(&b, "#define REGS %s\n\n", strings.Join(regs, ", "))
	fmt.Fprintf(&b, "// Thread bodies\n%s\n\n", strings.Join(threads, "\n\n"))
	fmt.Fprintf(&b, "%s\n\n", strings.Join(handlers, "\n\n"))
	fmt.Fprintf(&b, "// Final assertion\n// %s\n\n", l.FinalAssertionText)
	fmt.Fprintf(&b, "// Final test struct\nlitmus_test_t %s__toml = {\n", SanitisedName(l.Name))
	fmt.Fprintf(&b, "  \"%s\",\n", l.Name)
	fmt.Fprintf(&b, "  MAKE_THREADS(%d),\n", len(l.Threads))
	fmt.Fprintf(&b, "  MAKE_VARS(VARS%s),\n", additional)
	b.WriteString("  MAKE_REGS(REGS),\n")
	fmt.Fprintf(&b, "  INIT_STATE(%s),%s\n", initStateBlock(l.InitState), interesting)
	fmt.Fprintf(&b, "  %s\n", refs)
	fmt.Fprintf(&b, "  .requires_pgtable = %d,\n", requiresPgtable)
	fmt.Fprintf(&b, "  .start_els = (int[]){%s},\n", startELs(l.Threads))
	b.WriteString("};\n")

	log.Debug(log.EmitMonitoring, "emitted test", "name", l.Name, "bytes", b.Len())
	return b.String(), nil
}
