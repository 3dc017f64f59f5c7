package types

import (
	"regexp"
	"slices"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

// RegSet is a set of registers with a deterministic iteration order.
type RegSet map[Reg]struct{}

func NewRegSet(regs ...Reg) RegSet {
	s := make(RegSet, len(regs))
	for _, r := range regs {
		s[r] = struct{}{}
	}
	return s
}

func (s RegSet) Add(r Reg) {
	s[r] = struct{}{}
}

func (s RegSet) Union(o RegSet) {
	for r := range o {
		s[r] = struct{}{}
	}
}

// Sorted returns the registers in Reg.Compare order.
func (s RegSet) Sorted() []Reg {
	regs := maps.Keys(s)
	slices.SortFunc(regs, Reg.Compare)
	return regs
}

var asmRegPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`\b([xXwWbBhHsSdDqQ]([0-9]|[12][0-9]|30))\b`)
})

// ParseRegsFromAsm returns every register mentioned in a block of assembly,
// ignoring anything after a ';' on each line. The result is used as the
// clobber list of the block.
func ParseRegsFromAsm(asm string) (RegSet, error) {
	set := make(RegSet)
	for _, line := range strings.Split(strings.TrimSpace(asm), "\n") {
		if instr, _, found := strings.Cut(line, ";"); found {
			line = instr
		}
		for _, tok := range asmRegPattern().FindAllString(strings.TrimSpace(line), -1) {
			reg, err := ParseReg(tok)
			if err != nil {
				return nil, err
			}
			set.Add(reg)
		}
	}
	return set, nil
}
