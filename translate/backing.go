package translate

import (
	"slices"
	"strconv"

	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/log"
	"github.com/colorfulnotion/litmus/pgtable"
	"github.com/colorfulnotion/litmus/types"
)

type DirectiveKind int

const (
	// DirectiveValue backs Sym with memory holding Value.
	DirectiveValue DirectiveKind = iota
	// DirectiveUnmapped leaves Sym without backing memory.
	DirectiveUnmapped
	// DirectiveAlias states that Sym and Target share backing memory.
	DirectiveAlias
)

// Directive is one initial state fact taken from the page table setup.
type Directive struct {
	Kind   DirectiveKind
	Sym    string
	Value  string
	Target string
}

func ValueOf(sym, value string) Directive {
	return Directive{Kind: DirectiveValue, Sym: sym, Value: value}
}

func UnmappedOf(sym string) Directive {
	return Directive{Kind: DirectiveUnmapped, Sym: sym}
}

func AliasOf(sym, target string) Directive {
	return Directive{Kind: DirectiveAlias, Sym: sym, Target: target}
}

// backing is what an address resolves to; unmapped addresses carry no value.
type backing struct {
	unmapped bool
	value    string
}

func (b backing) String() string {
	if b.unmapped {
		return "unmapped"
	}
	return b.value
}

func (b backing) state(sym string) types.InitState {
	if b.unmapped {
		return types.Unmapped{Sym: sym}
	}
	return types.Var{Sym: sym, Value: b.value}
}

// GenInitState extracts the initial state directives and the declared
// physical addresses from a solved page table setup.
func GenInitState(constraints []pgtable.Constraint) (directives []Directive, physical []string) {
	for _, c := range constraints {
		switch c := c.(type) {
		case *pgtable.Initial:
			id, ok := c.Loc.(*pgtable.Id)
			if !ok {
				log.Debug(log.BackingMonitoring, "ignoring initial value", "constraint", c)
				continue
			}
			switch v := c.Value.(type) {
			case *pgtable.Int:
				directives = append(directives, ValueOf(id.Name, strconv.FormatUint(v.Value, 10)))
			case *pgtable.Hex:
				directives = append(directives, ValueOf(id.Name, v.Text))
			case *pgtable.Bin:
				directives = append(directives, ValueOf(id.Name, v.Text))
			default:
				log.Debug(log.BackingMonitoring, "ignoring initial value", "constraint", c)
			}
		case *pgtable.MapsTo:
			if c.Maybe {
				continue
			}
			from, ok1 := c.From.(*pgtable.Id)
			to, ok2 := c.To.(*pgtable.Id)
			if !ok1 || !ok2 {
				continue
			}
			if c.Invalid() {
				directives = append(directives, UnmappedOf(from.Name))
			} else {
				directives = append(directives, AliasOf(from.Name, to.Name))
			}
		case *pgtable.Address:
			if c.Kind == pgtable.Physical {
				physical = append(physical, c.Names...)
			}
		}
	}
	return directives, physical
}

// ResolveBacking decides which addresses get their own memory, which alias
// another address, and which stay unmapped.
//
// Value and Unmapped directives are kept. Every address reachable through
// Alias edges from a backed address is recorded as an alias of the address
// that discovered it. Physical addresses that remain unbacked get a zero
// value and propagate it the same way. Alias members and symbolic addresses
// that end up with no backing are unmapped. Two different backings reaching
// one address is an error.
func ResolveBacking(directives []Directive, physical, symbolics []string) ([]types.InitState, error) {
	edges := make(map[string][]string)
	var members []string
	seenMember := make(map[string]bool)
	addEdge := func(a, b string) {
		if !slices.Contains(edges[a], b) {
			edges[a] = append(edges[a], b)
		}
		if !seenMember[a] {
			seenMember[a] = true
			members = append(members, a)
		}
	}

	type explicit struct {
		sym string
		b   backing
	}
	var origins []explicit
	backed := make(map[string]backing)

	for _, d := range directives {
		switch d.Kind {
		case DirectiveAlias:
			addEdge(d.Sym, d.Target)
			addEdge(d.Target, d.Sym)
		case DirectiveValue, DirectiveUnmapped:
			b := backing{unmapped: d.Kind == DirectiveUnmapped, value: d.Value}
			if prev, ok := backed[d.Sym]; ok {
				if prev != b {
					return nil, conflict(prev, b)
				}
				continue
			}
			backed[d.Sym] = b
			origins = append(origins, explicit{d.Sym, b})
		}
	}

	var out []types.InitState
	for _, o := range origins {
		out = append(out, o.b.state(o.sym))
	}

	var aliases []types.InitState
	propagate := func(start string, b backing) error {
		stack := []string{start}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, next := range edges[cur] {
				if prev, ok := backed[next]; ok {
					if prev != b {
						return conflict(prev, b)
					}
					continue
				}
				backed[next] = b
				aliases = append(aliases, types.Alias{Sym: next, Target: cur})
				stack = append(stack, next)
			}
		}
		return nil
	}

	for _, o := range origins {
		if err := propagate(o.sym, o.b); err != nil {
			return nil, err
		}
	}

	pas := slices.Clone(physical)
	slices.Sort(pas)
	for _, pa := range slices.Compact(pas) {
		if _, ok := backed[pa]; ok {
			continue
		}
		zero := backing{value: "0"}
		backed[pa] = zero
		out = append(out, zero.state(pa))
		if err := propagate(pa, zero); err != nil {
			return nil, err
		}
	}

	unmapped := make(map[string]bool)
	slices.Sort(members)
	for _, m := range members {
		if _, ok := backed[m]; !ok && !unmapped[m] {
			unmapped[m] = true
			out = append(out, types.Unmapped{Sym: m})
		}
	}
	for _, s := range symbolics {
		if _, ok := backed[s]; !ok && !unmapped[s] {
			unmapped[s] = true
			out = append(out, types.Unmapped{Sym: s})
		}
	}

	out = append(out, aliases...)
	log.Debug(log.BackingMonitoring, "resolved backing", "directives", len(directives), "states", len(out))
	return out, nil
}

func conflict(a, b backing) error {
	return litmuserrors.Wrap(litmuserrors.ErrPageTableSetup, "Multiple backed values for same address (%s and %s)", a, b)
}

// Directives converts resolved states back into directives, so resolution
// can be applied again.
func Directives(states []types.InitState) []Directive {
	out := make([]Directive, 0, len(states))
	for _, s := range states {
		switch s := s.(type) {
		case types.Var:
			out = append(out, ValueOf(s.Sym, s.Value))
		case types.Unmapped:
			out = append(out, UnmappedOf(s.Sym))
		case types.Alias:
			out = append(out, AliasOf(s.Sym, s.Target))
		}
	}
	return out
}

// Backing follows alias links from sym to the state that owns its memory.
// It returns nil when sym has no state.
func Backing(states []types.InitState, sym string) types.InitState {
	bySym := make(map[string]types.InitState, len(states))
	for _, s := range states {
		bySym[s.Symbol()] = s
	}
	seen := make(map[string]bool)
	for {
		s, ok := bySym[sym]
		if !ok || seen[sym] {
			return nil
		}
		seen[sym] = true
		a, ok := s.(types.Alias)
		if !ok {
			return s
		}
		sym = a.Target
	}
}

// AdditionalVars returns the page table names the harness must allocate on
// top of the primary variables, sorted.
func AdditionalVars(constraints []pgtable.Constraint, vars []string) ([]string, error) {
	names := make(map[string]bool)
	for _, c := range constraints {
		switch c := c.(type) {
		case *pgtable.Initial:
			if id, ok := c.Loc.(*pgtable.Id); ok {
				names[id.Name] = true
			}
		case *pgtable.MapsTo:
			if c.Maybe {
				log.Warn(log.BackingMonitoring, "Ignoring page table constraint", "constraint", c)
				continue
			}
			if c.Level != pgtable.DefaultLevel {
				return nil, litmuserrors.Unsupported("mappings at level %d (%s)", c.Level, c)
			}
			if from, ok := c.From.(*pgtable.Id); ok {
				names[from.Name] = true
			}
			if to, ok := c.To.(*pgtable.Id); ok && !c.Invalid() {
				names[to.Name] = true
			}
		case *pgtable.Address:
			if c.Kind == pgtable.Intermediate {
				return nil, litmuserrors.Unsupported("intermediate addresses (%s)", c)
			}
			for _, n := range c.Names {
				names[n] = true
			}
		case *pgtable.Function:
			if c.Func != "PAGE" && c.Func != "PAGEOFF" {
				log.Warn(log.BackingMonitoring, "Ignoring page table constraint", "constraint", c)
			}
		case *pgtable.Option:
		default:
			log.Warn(log.BackingMonitoring, "Ignoring page table constraint", "constraint", c)
		}
	}
	for _, v := range vars {
		delete(names, v)
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}
