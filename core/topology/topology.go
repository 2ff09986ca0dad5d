// Package topology defines the flat description of packages, modules,
// handlers, schemas and fields that the transport engine resolves at startup.
//
// The engine returns the topology as parallel collections. Every record refers
// to its owners by numeric id, so consumers index it once (see schema.Build and
// runtime.BuildHandlers) and never walk it again at dispatch time.
package topology

// Topology is the resolved application description returned by the engine.
type Topology struct {
	UpstreamID string    `msgpack:"upstream_id" yaml:"upstream_id,omitempty"`
	Packages   []Package `msgpack:"packages" yaml:"packages"`
	Modules    []Module  `msgpack:"modules" yaml:"modules"`
	Models     []Model   `msgpack:"models" yaml:"models"`
	Hfns       []Hfn     `msgpack:"hfns" yaml:"hfns"`
	Rpcs       []Rpc     `msgpack:"rpcs" yaml:"rpcs,omitempty"`
	Schemas    []Schema  `msgpack:"schemas" yaml:"schemas"`
	Fields     []Field   `msgpack:"fields" yaml:"fields"`
}

// Package is a top-level namespace. The main package has an empty name.
type Package struct {
	ID       uint32 `msgpack:"id" yaml:"id"`
	Name     string `msgpack:"name" yaml:"name"`
	FullName string `msgpack:"fullName,omitempty" yaml:"full_name,omitempty"`
}

// Module groups handlers and owns a default State record.
type Module struct {
	ID        uint32 `msgpack:"id" yaml:"id"`
	Name      string `msgpack:"name" yaml:"name"`
	PackageID uint32 `msgpack:"package_id" yaml:"package_id"`
}

// Model associates a schema with a module. A model with an empty name is the
// module's implicit State record.
type Model struct {
	ID        uint32 `msgpack:"id" yaml:"id"`
	Name      string `msgpack:"name" yaml:"name"`
	SchemaID  uint32 `msgpack:"schema_id" yaml:"schema_id"`
	PackageID uint32 `msgpack:"package_id" yaml:"package_id"`
	ModuleID  uint32 `msgpack:"module_id" yaml:"module_id"`
}

// IsState reports whether the model is its module's default State record.
func (m Model) IsState() bool {
	return m.Name == ""
}

// Hfn is a handler declared by a module. SchemaID names its input record.
type Hfn struct {
	ID        uint32 `msgpack:"id" yaml:"id"`
	Name      string `msgpack:"name" yaml:"name"`
	SchemaID  uint32 `msgpack:"schema_id" yaml:"schema_id"`
	PackageID uint32 `msgpack:"package_id" yaml:"package_id"`
	ModuleID  uint32 `msgpack:"module_id" yaml:"module_id"`
}

// Rpc is a package level request/response declaration naming its request
// and response schemas.
type Rpc struct {
	ID          uint32 `msgpack:"id" yaml:"id"`
	Name        string `msgpack:"name" yaml:"name"`
	ReqSchemaID uint32 `msgpack:"req_schema_id" yaml:"req_schema_id"`
	ResSchemaID uint32 `msgpack:"res_schema_id" yaml:"res_schema_id"`
	PackageID   uint32 `msgpack:"package_id" yaml:"package_id"`
}

// Schema identifies a record shape. Its fields are listed separately.
type Schema struct {
	ID        uint32 `msgpack:"id" yaml:"id"`
	PackageID uint32 `msgpack:"package_id" yaml:"package_id"`
}

// Key returns the schema identity.
func (s Schema) Key() SchemaKey {
	return SchemaKey{Package: s.PackageID, Schema: s.ID}
}

// Field is one slot of a schema. Type is either a one character scalar code
// or a schema reference key.
type Field struct {
	ID        uint32 `msgpack:"id" yaml:"id"`
	Name      string `msgpack:"name" yaml:"name"`
	Type      string `msgpack:"t" yaml:"type"`
	IsArray   bool   `msgpack:"is_array" yaml:"is_array,omitempty"`
	PackageID uint32 `msgpack:"package_id" yaml:"package_id"`
	SchemaID  uint32 `msgpack:"schema_id" yaml:"schema_id"`
}

// Owner returns the identity of the schema the field belongs to.
func (f Field) Owner() SchemaKey {
	return SchemaKey{Package: f.PackageID, Schema: f.SchemaID}
}

// Package returns the package with the given id.
func (t Topology) Package(id uint32) (Package, bool) {
	for _, p := range t.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// Module returns the module with the given id inside a package.
func (t Topology) Module(pkgID, id uint32) (Module, bool) {
	for _, m := range t.Modules {
		if m.ID == id && m.PackageID == pkgID {
			return m, true
		}
	}
	return Module{}, false
}

// ModulesOf returns the modules declared by a package, in input order.
func (t Topology) ModulesOf(pkgID uint32) []Module {
	var out []Module
	for _, m := range t.Modules {
		if m.PackageID == pkgID {
			out = append(out, m)
		}
	}
	return out
}

// HfnsOf returns the handlers declared by a module, in input order.
func (t Topology) HfnsOf(pkgID, moduleID uint32) []Hfn {
	var out []Hfn
	for _, h := range t.Hfns {
		if h.PackageID == pkgID && h.ModuleID == moduleID {
			out = append(out, h)
		}
	}
	return out
}

// PackageNames returns the names of all packages, in input order.
func (t Topology) PackageNames() []string {
	names := make([]string, 0, len(t.Packages))
	for _, p := range t.Packages {
		names = append(names, p.Name)
	}
	return names
}

// QualifiedName renders the dotted logical name used for schema lookups.
// Members of the main package (id 0) carry no package prefix.
func QualifiedName(pkg Package, module Module, member string) string {
	if pkg.ID == 0 {
		return module.Name + "." + member
	}
	return pkg.Name + "." + module.Name + "." + member
}
