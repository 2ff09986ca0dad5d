package runtime

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/hfn/core/model"
)

var (
	// ErrNoMainPackage is returned at startup when no package has the
	// empty name.
	ErrNoMainPackage = errors.New("runtime: no main package")

	// ErrInvalidModule is returned by NewPackage for a module that cannot be
	// registered.
	ErrInvalidModule = errors.New("runtime: invalid module")

	// ErrDuplicatePackage is returned when two packages share a name.
	ErrDuplicatePackage = errors.New("runtime: duplicate package")
)

// HandlerFunc handles one invocation. A returned error is reported on the
// dispatcher's error channel.
type HandlerFunc func(c *Context) error

// Module groups handlers. Handler names must match the names the topology
// declares for the module.
type Module interface {
	Name() string
	Handlers() map[string]HandlerFunc
}

// Factory builds a module instance.
type Factory func() Module

// ModuleEntry is a registered module.
type ModuleEntry struct {
	Name     string
	Methods  map[string]HandlerFunc
	Instance Module
}

// Middleware hooks into every handler of a package. Nil hooks are skipped.
type Middleware struct {
	// BeforeHfn runs before the handler. An error skips the handler.
	BeforeHfn func(c *Context) error

	// AfterHfn runs after a handler that returned nil.
	AfterHfn func(c *Context) error

	// OnSetState runs before a state push is sent. An error suppresses the
	// push.
	OnSetState func(c *Context, state *model.Model) error
}

// Package is a named group of modules.
type Package struct {
	name       string
	modules    map[string]ModuleEntry
	middleware []Middleware
}

// NewPackage builds every module and validates it. The main package has the
// empty name.
func NewPackage(name string, factories ...Factory) (*Package, error) {
	p := &Package{
		name:    name,
		modules: make(map[string]ModuleEntry, len(factories)),
	}

	for i, factory := range factories {
		if factory == nil {
			return nil, fmt.Errorf("%w: factory %d is nil", ErrInvalidModule, i)
		}
		mod := factory()
		if mod == nil {
			return nil, fmt.Errorf("%w: factory %d returned nil", ErrInvalidModule, i)
		}
		entry, err := newModuleEntry(mod)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(entry.Name)
		if _, exists := p.modules[key]; exists {
			return nil, fmt.Errorf("%w: module %q registered twice in package %q", ErrInvalidModule, entry.Name, name)
		}
		p.modules[key] = entry
	}

	return p, nil
}

func newModuleEntry(mod Module) (ModuleEntry, error) {
	name := mod.Name()
	if name == "" {
		return ModuleEntry{}, fmt.Errorf("%w: %T has an empty name", ErrInvalidModule, mod)
	}
	if strings.HasPrefix(name, "_") {
		return ModuleEntry{}, fmt.Errorf("%w: module name %q is private", ErrInvalidModule, name)
	}

	methods := make(map[string]HandlerFunc)
	for hname, fn := range mod.Handlers() {
		switch {
		case hname == "":
			return ModuleEntry{}, fmt.Errorf("%w: module %q has an unnamed handler", ErrInvalidModule, name)
		case strings.HasPrefix(hname, "_"):
			return ModuleEntry{}, fmt.Errorf("%w: handler %s.%s is private", ErrInvalidModule, name, hname)
		case fn == nil:
			return ModuleEntry{}, fmt.Errorf("%w: handler %s.%s is nil", ErrInvalidModule, name, hname)
		}
		methods[hname] = fn
	}

	return ModuleEntry{Name: name, Methods: methods, Instance: mod}, nil
}

// Name returns the package name.
func (p *Package) Name() string {
	return p.name
}

// Use appends middleware. Hooks run in the order they were added.
func (p *Package) Use(m Middleware) *Package {
	p.middleware = append(p.middleware, m)
	return p
}

// Module returns the module registered under name, case-insensitively.
func (p *Package) Module(name string) (ModuleEntry, bool) {
	e, ok := p.modules[strings.ToLower(name)]
	return e, ok
}

// ModuleNames returns the registered module names, sorted.
func (p *Package) ModuleNames() []string {
	names := make([]string, 0, len(p.modules))
	for _, e := range p.modules {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

func (p *Package) beforeHfn(c *Context) error {
	for _, m := range p.middleware {
		if m.BeforeHfn == nil {
			continue
		}
		if err := m.BeforeHfn(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Package) afterHfn(c *Context) error {
	for _, m := range p.middleware {
		if m.AfterHfn == nil {
			continue
		}
		if err := m.AfterHfn(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Package) onSetState(c *Context, state *model.Model) error {
	for _, m := range p.middleware {
		if m.OnSetState == nil {
			continue
		}
		if err := m.OnSetState(c, state); err != nil {
			return err
		}
	}
	return nil
}

// mainPackage returns the package with the empty name and checks that
// package names are unique.
func mainPackage(packages []*Package) (*Package, error) {
	seen := make(map[string]bool, len(packages))
	var main *Package
	for _, p := range packages {
		if p == nil {
			continue
		}
		if seen[p.name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePackage, p.name)
		}
		seen[p.name] = true
		if p.name == "" {
			main = p
		}
	}
	if main == nil {
		return nil, ErrNoMainPackage
	}
	return main, nil
}

// PackageNames returns the names of packages in order.
func PackageNames(packages []*Package) []string {
	names := make([]string, 0, len(packages))
	for _, p := range packages {
		if p != nil {
			names = append(names, p.name)
		}
	}
	return names
}
