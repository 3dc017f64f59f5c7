package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

// ToTree renders the IR for the `ir` command.
func (l *Litmus) ToTree() treeprint.Tree {
	tree := treeprint.NewWithRoot(fmt.Sprintf("\033[1;34m%s\033[0m (%s)", l.Name, l.Arch))
	tree.AddMetaNode("mmu", l.MMUOn)
	tree.AddMetaNode("vars", strings.Join(l.VarNames, ", "))
	if len(l.AdditionalVarNames) > 0 {
		tree.AddMetaNode("additional vars", strings.Join(l.AdditionalVarNames, ", "))
	}
	tree.AddMetaNode("regs", strings.Join(threadRegNames(l.Regs), ", "))
	tree.AddMetaNode("assertion", l.FinalAssertionText)

	threads := tree.AddBranch("threads")
	for i := range l.Threads {
		t := &l.Threads[i]
		branch := threads.AddMetaBranch(fmt.Sprintf("EL%d", t.EL), "P"+t.Name)
		if t.VBarEL1 != nil {
			branch.AddMetaNode("vbar_el1", fmt.Sprintf("0x%x", t.VBarEL1.Lower()))
		}
		if len(t.Reset) > 0 {
			resets := branch.AddBranch("reset")
			for _, r := range t.SortedReset() {
				resets.AddMetaNode(r.String(), t.Reset[r].String())
			}
		}
		branch.AddMetaNode("clobbers", strings.Join(regNames(t.Clobbers.Sorted()), " "))
		if t.Compiled {
			asserts := branch.AddBranch("assert")
			for _, a := range t.Assert {
				asserts.AddMetaNode(a.Reg.String(), a.Value.String())
			}
		}
	}

	if len(l.SyncHandlers) > 0 {
		handlers := tree.AddBranch("sync handlers")
		for _, h := range l.SyncHandlers {
			var els []string
			for _, te := range h.ThreadELs {
				els = append(els, fmt.Sprintf("%d (EL%d)", te.Thread, te.EL))
			}
			handlers.AddMetaNode(h.Name, strings.Join(els, ", "))
		}
	}

	states := tree.AddBranch("init state")
	for _, s := range l.InitState {
		states.AddNode(fmt.Sprint(s))
	}
	return tree
}

func regNames(regs []Reg) []string {
	out := make([]string, len(regs))
	for i, r := range regs {
		out[i] = r.String()
	}
	return out
}

func threadRegNames(regs []ThreadReg) []string {
	out := make([]string, len(regs))
	for i, tr := range regs {
		out[i] = fmt.Sprintf("%d:%s", tr.Thread, tr.Reg)
	}
	return out
}

type litmusJSON struct {
	Arch               string        `json:"arch"`
	Name               string        `json:"name"`
	MMUOn              bool          `json:"mmu_on"`
	PageTableSetup     string        `json:"page_table_setup,omitempty"`
	VarNames           []string      `json:"vars"`
	AdditionalVarNames []string      `json:"additional_vars,omitempty"`
	Regs               []string      `json:"regs"`
	FinalAssertion     string        `json:"final_assertion"`
	Threads            []threadJSON  `json:"threads"`
	SyncHandlers       []handlerJSON `json:"sync_handlers,omitempty"`
	InitState          []string      `json:"init_state"`
}

type threadJSON struct {
	Name     string            `json:"name"`
	EL       uint8             `json:"el"`
	Code     string            `json:"code"`
	Clobbers []string          `json:"clobbers"`
	VBarEL1  string            `json:"vbar_el1,omitempty"`
	Reset    map[string]string `json:"reset"`
	Assert   []string          `json:"assert,omitempty"`
}

type handlerJSON struct {
	Name      string   `json:"name"`
	Code      string   `json:"code"`
	Clobbers  []string `json:"clobbers"`
	ThreadELs []string `json:"thread_els"`
}

func (l *Litmus) MarshalJSON() ([]byte, error) {
	view := litmusJSON{
		Arch:               l.Arch,
		Name:               l.Name,
		MMUOn:              l.MMUOn,
		PageTableSetup:     l.PageTableSetup,
		VarNames:           l.VarNames,
		AdditionalVarNames: l.AdditionalVarNames,
		Regs:               threadRegNames(l.Regs),
		FinalAssertion:     l.FinalAssertionText,
	}
	for i := range l.Threads {
		t := &l.Threads[i]
		tj := threadJSON{
			Name:     t.Name,
			EL:       t.EL,
			Code:     t.Code,
			Clobbers: regNames(t.Clobbers.Sorted()),
			Reset:    make(map[string]string, len(t.Reset)),
		}
		if t.VBarEL1 != nil {
			tj.VBarEL1 = fmt.Sprintf("0x%x", t.VBarEL1.Lower())
		}
		for r, v := range t.Reset {
			tj.Reset[r.String()] = v.String()
		}
		for _, a := range t.Assert {
			tj.Assert = append(tj.Assert, a.Reg.String()+" "+a.Value.String())
		}
		view.Threads = append(view.Threads, tj)
	}
	for _, h := range l.SyncHandlers {
		hj := handlerJSON{Name: h.Name, Code: h.Code, Clobbers: regNames(h.Clobbers.Sorted())}
		for _, te := range h.ThreadELs {
			hj.ThreadELs = append(hj.ThreadELs, fmt.Sprintf("%d:EL%d", te.Thread, te.EL))
		}
		view.SyncHandlers = append(view.SyncHandlers, hj)
	}
	for _, s := range l.InitState {
		view.InitState = append(view.InitState, fmt.Sprint(s))
	}
	return json.Marshal(view)
}

// ToJSON returns the indented JSON form of the IR.
func (l *Litmus) ToJSON() ([]byte, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
