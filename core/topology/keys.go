package topology

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidKey is returned when a composite key string cannot be parsed.
var ErrInvalidKey = errors.New("topology: invalid key")

// Key prefixes of the composite string forms.
const (
	ModelKeyPrefix   = "model-"
	HandlerKeyPrefix = "hfn-"
)

// SchemaKey identifies a schema by (package, schema id).
type SchemaKey struct {
	Package uint32
	Schema  uint32
}

// String renders the key as "<pkg>-<schema>".
func (k SchemaKey) String() string {
	return fmt.Sprintf("%d-%d", k.Package, k.Schema)
}

// ModelKey identifies a module's model association.
type ModelKey struct {
	Package uint32
	Module  uint32
	Model   uint32
}

// String renders the key as "model-<pkg>-<module>-<model>".
func (k ModelKey) String() string {
	return fmt.Sprintf("%s%d-%d-%d", ModelKeyPrefix, k.Package, k.Module, k.Model)
}

// HandlerKey identifies a handler by (package, module, handler).
type HandlerKey struct {
	Package uint32
	Module  uint32
	Handler uint32
}

// String renders the key as "<pkg>-<module>-<handler>".
func (k HandlerKey) String() string {
	return fmt.Sprintf("%d-%d-%d", k.Package, k.Module, k.Handler)
}

// SchemaString renders the key of the handler's input schema,
// "hfn-<pkg>-<module>-<handler>".
func (k HandlerKey) SchemaString() string {
	return HandlerKeyPrefix + k.String()
}

// ParseSchemaKey parses "<pkg>-<schema>".
func ParseSchemaKey(s string) (SchemaKey, error) {
	ids, err := parseIDs(s, 2)
	if err != nil {
		return SchemaKey{}, err
	}
	return SchemaKey{Package: ids[0], Schema: ids[1]}, nil
}

// ParseModelKey parses "model-<pkg>-<module>-<model>".
func ParseModelKey(s string) (ModelKey, error) {
	rest, ok := strings.CutPrefix(s, ModelKeyPrefix)
	if !ok {
		return ModelKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	ids, err := parseIDs(rest, 3)
	if err != nil {
		return ModelKey{}, err
	}
	return ModelKey{Package: ids[0], Module: ids[1], Model: ids[2]}, nil
}

// ParseHandlerKey parses "<pkg>-<module>-<handler>", with or without the
// "hfn-" prefix.
func ParseHandlerKey(s string) (HandlerKey, error) {
	ids, err := parseIDs(strings.TrimPrefix(s, HandlerKeyPrefix), 3)
	if err != nil {
		return HandlerKey{}, err
	}
	return HandlerKey{Package: ids[0], Module: ids[1], Handler: ids[2]}, nil
}

func parseIDs(s string, n int) ([]uint32, error) {
	parts := strings.Split(s, "-")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	ids := make([]uint32, n)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
		ids[i] = uint32(v)
	}
	return ids, nil
}
