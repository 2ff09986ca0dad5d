package schema

import "github.com/artpar/hfn/core/topology"

// Schema is the typed shape of a record. It is immutable once the registry
// that owns it has been built.
type Schema struct {
	ID        uint32
	PackageID uint32

	// fields in declaration order, plus the two lookup indexes used by
	// encode (by name) and decode (by id).
	fields []*Field
	byID   map[uint32]*Field
	byName map[string]*Field

	moduleID  uint32
	hasModule bool

	handlerID  uint32
	hasHandler bool
}

// New creates a schema with the given fields. Later fields replace earlier
// ones that share an id or a name.
func New(key topology.SchemaKey, fields ...Field) *Schema {
	s := &Schema{
		ID:        key.Schema,
		PackageID: key.Package,
		byID:      make(map[uint32]*Field, len(fields)),
		byName:    make(map[string]*Field, len(fields)),
	}
	for i := range fields {
		f := fields[i]
		s.addField(&f)
	}
	return s
}

func (s *Schema) addField(f *Field) {
	if prev, ok := s.byID[f.ID]; ok {
		delete(s.byName, prev.Name)
		for i, existing := range s.fields {
			if existing == prev {
				s.fields[i] = f
				break
			}
		}
	} else {
		s.fields = append(s.fields, f)
	}
	s.byID[f.ID] = f
	s.byName[f.Name] = f
}

// Key returns the schema identity.
func (s *Schema) Key() topology.SchemaKey {
	return topology.SchemaKey{Package: s.PackageID, Schema: s.ID}
}

// SameAs reports whether two schemas share an identity. Identity, not
// structure, decides whether a nested record fits a field.
func (s *Schema) SameAs(other *Schema) bool {
	if s == nil || other == nil {
		return false
	}
	return s.ID == other.ID && s.PackageID == other.PackageID
}

// FieldByName returns the field with the given name.
func (s *Schema) FieldByName(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// FieldByID returns the field with the given id.
func (s *Schema) FieldByID(id uint32) (*Field, bool) {
	f, ok := s.byID[id]
	return f, ok
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = *f
	}
	return out
}

// ModuleID returns the owning module when the schema is a module's default
// State record. Only such schemas may be pushed as state.
func (s *Schema) ModuleID() (uint32, bool) {
	return s.moduleID, s.hasModule
}

// HandlerID returns the handler when the schema is a handler's input record.
func (s *Schema) HandlerID() (uint32, bool) {
	return s.handlerID, s.hasHandler
}
