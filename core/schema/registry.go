package schema

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/artpar/hfn/core/topology"
	"github.com/rs/zerolog"
)

// Registry indexes schemas by dotted name, schema identity, model association
// and handler association. It is read-only after Build.
type Registry struct {
	// schemas in topology order
	schemas []*Schema

	// names maps dotted logical names (module.State, pkg.module.hfn)
	names map[string]*Schema

	// ids maps (package, schema)
	ids map[topology.SchemaKey]*Schema

	// models maps (package, module, model)
	models map[topology.ModelKey]*Schema

	// handlers maps (package, module, handler)
	handlers map[topology.HandlerKey]*Schema
}

func newRegistry() *Registry {
	return &Registry{
		names:    make(map[string]*Schema),
		ids:      make(map[topology.SchemaKey]*Schema),
		models:   make(map[topology.ModelKey]*Schema),
		handlers: make(map[topology.HandlerKey]*Schema),
	}
}

// Build indexes every schema of the topology. Schemas with no model or
// handler association are still reachable by identity. Records whose owning
// package or module is missing lose only their dotted name.
func Build(topo topology.Topology, logger zerolog.Logger) *Registry {
	r := newRegistry()

	fields := make(map[topology.SchemaKey][]topology.Field, len(topo.Schemas))
	for _, f := range topo.Fields {
		fields[f.Owner()] = append(fields[f.Owner()], f)
	}

	// First association wins, matching the engine's declaration order.
	models := make(map[topology.SchemaKey]topology.Model, len(topo.Models))
	for _, m := range topo.Models {
		key := topology.SchemaKey{Package: m.PackageID, Schema: m.SchemaID}
		if _, ok := models[key]; !ok {
			models[key] = m
		}
	}
	hfns := make(map[topology.SchemaKey]topology.Hfn, len(topo.Hfns))
	for _, h := range topo.Hfns {
		key := topology.SchemaKey{Package: h.PackageID, Schema: h.SchemaID}
		if _, ok := hfns[key]; !ok {
			hfns[key] = h
		}
	}

	for _, ts := range topo.Schemas {
		key := ts.Key()
		if _, exists := r.ids[key]; exists {
			logger.Warn().Str("schema", key.String()).Msg("duplicate schema in topology, keeping first")
			continue
		}

		s := &Schema{
			ID:        ts.ID,
			PackageID: ts.PackageID,
			byID:      make(map[uint32]*Field, len(fields[key])),
			byName:    make(map[string]*Field, len(fields[key])),
		}
		for _, tf := range fields[key] {
			s.addField(fieldFrom(tf))
		}

		if m, ok := models[key]; ok {
			if m.IsState() {
				s.moduleID = m.ModuleID
				s.hasModule = true
			}
			r.models[topology.ModelKey{Package: m.PackageID, Module: m.ModuleID, Model: m.ID}] = s

			member := m.Name
			if m.IsState() {
				member = "State"
			}
			r.addName(topo, s, m.PackageID, m.ModuleID, member, logger)
		}

		if h, ok := hfns[key]; ok {
			s.handlerID = h.ID
			s.hasHandler = true
			r.handlers[topology.HandlerKey{Package: h.PackageID, Module: h.ModuleID, Handler: h.ID}] = s
			r.addName(topo, s, h.PackageID, h.ModuleID, h.Name, logger)
		}

		r.ids[key] = s
		r.schemas = append(r.schemas, s)
	}

	logger.Debug().
		Int("schemas", len(r.schemas)).
		Int("names", len(r.names)).
		Int("models", len(r.models)).
		Int("handlers", len(r.handlers)).
		Msg("schema registry built")

	return r
}

func (r *Registry) addName(topo topology.Topology, s *Schema, pkgID, moduleID uint32, member string, logger zerolog.Logger) {
	pkg, ok := topo.Package(pkgID)
	if !ok {
		logger.Warn().Uint32("package_id", pkgID).Str("schema", s.Key().String()).Msg("schema owner package missing, skipping dotted name")
		return
	}
	mod, ok := topo.Module(pkgID, moduleID)
	if !ok {
		logger.Warn().Uint32("module_id", moduleID).Str("schema", s.Key().String()).Msg("schema owner module missing, skipping dotted name")
		return
	}
	r.names[topology.QualifiedName(pkg, mod, member)] = s
}

// ByName returns the schema with a dotted logical name.
func (r *Registry) ByName(name string) (*Schema, bool) {
	s, ok := r.names[name]
	return s, ok
}

// ByID returns the schema with the given identity.
func (r *Registry) ByID(key topology.SchemaKey) (*Schema, bool) {
	s, ok := r.ids[key]
	return s, ok
}

// ByModel returns the schema associated with a module model.
func (r *Registry) ByModel(key topology.ModelKey) (*Schema, bool) {
	s, ok := r.models[key]
	return s, ok
}

// ByHandler returns the input schema of a handler.
func (r *Registry) ByHandler(key topology.HandlerKey) (*Schema, bool) {
	s, ok := r.handlers[key]
	return s, ok
}

// Lookup resolves any of the string key families: a dotted name,
// "model-<pkg>-<module>-<model>", "hfn-<pkg>-<module>-<handler>" or
// "<pkg>-<schema>". Field type references are resolved the same way.
func (r *Registry) Lookup(key string) (*Schema, bool) {
	if key == "" {
		return nil, false
	}
	if s, ok := r.names[key]; ok {
		return s, true
	}
	switch {
	case strings.HasPrefix(key, topology.ModelKeyPrefix):
		mk, err := topology.ParseModelKey(key)
		if err != nil {
			return nil, false
		}
		return r.ByModel(mk)
	case strings.HasPrefix(key, topology.HandlerKeyPrefix):
		hk, err := topology.ParseHandlerKey(key)
		if err != nil {
			return nil, false
		}
		return r.ByHandler(hk)
	}
	sk, err := topology.ParseSchemaKey(key)
	if err != nil {
		return nil, false
	}
	return r.ByID(sk)
}

// Resolve returns the schema a reference-typed field points at.
func (r *Registry) Resolve(f *Field) (*Schema, bool) {
	if f == nil || f.IsScalar() {
		return nil, false
	}
	return r.Lookup(string(f.Type))
}

// Len returns the number of distinct schemas.
func (r *Registry) Len() int {
	return len(r.schemas)
}

// Schemas returns every schema in topology order.
func (r *Registry) Schemas() []*Schema {
	out := make([]*Schema, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Keys returns every string key the registry answers to, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.names)+len(r.ids)+len(r.models)+len(r.handlers))
	for k := range r.names {
		keys = append(keys, k)
	}
	for k := range r.ids {
		keys = append(keys, k.String())
	}
	for k := range r.models {
		keys = append(keys, k.String())
	}
	for k := range r.handlers {
		keys = append(keys, k.SchemaString())
	}
	sort.Strings(keys)
	return keys
}

// Suggest returns up to limit known keys closest to key by edit distance,
// nearest first. Keys further than half their own length are not offered.
func (r *Registry) Suggest(key string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	type candidate struct {
		key  string
		dist int
	}
	var candidates []candidate
	for _, k := range r.Keys() {
		d := levenshtein.ComputeDistance(key, k)
		if d > len(k)/2 {
			continue
		}
		candidates = append(candidates, candidate{key: k, dist: d})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.key
	}
	return out
}
