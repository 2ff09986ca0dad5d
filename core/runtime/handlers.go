package runtime

import (
	"sort"

	"github.com/artpar/hfn/core/topology"
	"github.com/rs/zerolog"
)

// Binding is a handler bound to its topology identity.
type Binding struct {
	Key  topology.HandlerKey
	Name string
	Fn   HandlerFunc

	pkg *Package
}

// Handlers maps handler identities to bound handlers. It is read-only after
// BuildHandlers.
type Handlers struct {
	bindings map[topology.HandlerKey]Binding
}

// BuildHandlers binds every topology handler that has a registered
// implementation. Packages are matched by name, modules by lower-cased name
// and handlers by exact name. Anything without a match is skipped.
func BuildHandlers(topo topology.Topology, packages []*Package, logger zerolog.Logger) *Handlers {
	h := &Handlers{bindings: make(map[topology.HandlerKey]Binding)}

	byName := make(map[string]*Package, len(packages))
	for _, p := range packages {
		if p != nil {
			byName[p.name] = p
		}
	}

	for _, tp := range topo.Packages {
		pkg, ok := byName[tp.Name]
		if !ok {
			logger.Debug().Str("package", tp.Name).Msg("no implementation for package")
			continue
		}
		for _, tm := range topo.ModulesOf(tp.ID) {
			entry, ok := pkg.Module(tm.Name)
			if !ok {
				logger.Debug().Str("package", tp.Name).Str("module", tm.Name).Msg("no implementation for module")
				continue
			}
			for _, th := range topo.HfnsOf(tp.ID, tm.ID) {
				fn, ok := entry.Methods[th.Name]
				if !ok {
					logger.Debug().
						Str("package", tp.Name).
						Str("module", tm.Name).
						Str("handler", th.Name).
						Msg("no implementation for handler")
					continue
				}
				key := topology.HandlerKey{Package: tp.ID, Module: tm.ID, Handler: th.ID}
				h.bindings[key] = Binding{
					Key:  key,
					Name: topology.QualifiedName(tp, tm, th.Name),
					Fn:   fn,
					pkg:  pkg,
				}
			}
		}
	}

	logger.Debug().Int("handlers", len(h.bindings)).Msg("handler registry built")
	return h
}

// Lookup returns the handler bound to key.
func (h *Handlers) Lookup(key topology.HandlerKey) (Binding, bool) {
	b, ok := h.bindings[key]
	return b, ok
}

// Len returns the number of bound handlers.
func (h *Handlers) Len() int {
	return len(h.bindings)
}

// Bindings returns every binding ordered by key.
func (h *Handlers) Bindings() []Binding {
	out := make([]Binding, 0, len(h.bindings))
	for _, b := range h.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		return a.Handler < b.Handler
	})
	return out
}
