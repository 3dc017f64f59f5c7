// Package isa holds the read-only architecture context a translation runs
// against: the register symbol table and the ISA configuration.
package isa

import (
	_ "embed"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/colorfulnotion/litmus/litmuserrors"
)

//go:embed aarch64.toml
var defaultConfig []byte

// Config mirrors the ISA configuration file.
type Config struct {
	Arch                  string         `toml:"arch"`
	DefaultSizeof         uint32         `toml:"default_sizeof"`
	DefaultPageTableSetup string         `toml:"default_page_table_setup"`
	Registers             RegisterConfig `toml:"registers"`
}

type RegisterConfig struct {
	Families map[string]int    `toml:"families"`
	Special  []string          `toml:"special"`
	Renames  map[string]string `toml:"renames"`
}

type rename struct {
	from, to string
}

// Context is immutable once built and may be shared between goroutines.
type Context struct {
	cfg       Config
	registers map[string]struct{}
	renames   []rename
}

var loadDefault = sync.OnceValues(func() (*Context, error) {
	return Parse(defaultConfig)
})

// Default returns the embedded AArch64 context.
func Default() (*Context, error) {
	return loadDefault()
}

// Load reads an ISA configuration file.
func Load(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, litmuserrors.Wrap(litmuserrors.ErrLoadArchConfig, "%v", err)
	}
	return Parse(data)
}

// Parse builds a Context from TOML configuration text.
func Parse(data []byte) (*Context, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, litmuserrors.Wrap(litmuserrors.ErrLoadArchConfig, "%v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, litmuserrors.Wrap(litmuserrors.ErrLoadArchConfig, "unknown key %q", undecoded[0].String())
	}
	switch cfg.DefaultSizeof {
	case 1, 2, 4, 8:
	default:
		return nil, litmuserrors.Wrap(litmuserrors.ErrLoadArchConfig, "default_sizeof must be 1, 2, 4 or 8 (got %d)", cfg.DefaultSizeof)
	}

	ctx := &Context{cfg: cfg, registers: make(map[string]struct{})}
	for prefix, count := range cfg.Registers.Families {
		if count <= 0 || count > 256 {
			return nil, litmuserrors.Wrap(litmuserrors.ErrLoadArchConfig, "register family %s has invalid count %d", prefix, count)
		}
		for i := 0; i < count; i++ {
			ctx.registers[prefix+strconv.Itoa(i)] = struct{}{}
		}
	}
	for _, name := range cfg.Registers.Special {
		ctx.registers[name] = struct{}{}
	}
	for from, to := range cfg.Registers.Renames {
		if _, ok := cfg.Registers.Families[to]; !ok {
			return nil, litmuserrors.Wrap(litmuserrors.ErrLoadArchConfig, "rename %s -> %s targets an unknown register family", from, to)
		}
		ctx.renames = append(ctx.renames, rename{from: from, to: to})
	}
	// longest prefix first
	sort.Slice(ctx.renames, func(i, j int) bool {
		if len(ctx.renames[i].from) != len(ctx.renames[j].from) {
			return len(ctx.renames[i].from) > len(ctx.renames[j].from)
		}
		return ctx.renames[i].from < ctx.renames[j].from
	})
	return ctx, nil
}

func (c *Context) Name() string {
	return c.cfg.Arch
}

// Config returns a copy of the configuration.
func (c *Context) Config() Config {
	return c.cfg
}

func (c *Context) DefaultSizeof() uint32 {
	return c.cfg.DefaultSizeof
}

func (c *Context) DefaultPageTableSetup() string {
	return c.cfg.DefaultPageTableSetup
}

// ResolveRegister maps a register name as written in a test to its name in
// the symbol table, applying prefix renames.
func (c *Context) ResolveRegister(name string) (string, error) {
	if strings.HasPrefix(name, "__isla") {
		return name, nil
	}
	if _, ok := c.registers[name]; ok {
		return name, nil
	}
	upper := strings.ToUpper(name)
	if _, ok := c.registers[upper]; ok {
		return upper, nil
	}
	for _, r := range c.renames {
		if !strings.HasPrefix(upper, r.from) {
			continue
		}
		rest := upper[len(r.from):]
		if _, err := strconv.ParseUint(rest, 10, 8); err != nil {
			continue
		}
		candidate := r.to + rest
		if _, ok := c.registers[candidate]; ok {
			return candidate, nil
		}
	}
	return "", litmuserrors.Wrap(litmuserrors.ErrParseReg, "unknown register %s for %s", name, c.cfg.Arch)
}
