package usecase

import (
	"reflect"

	"github.com/morezero/usecase-executor/pkg/registry"
)

// TypeRegistry maps request type names to Go types. Names are usually
// qualified as "<import path>.<TypeName>"; see QualifiedName.
type TypeRegistry struct {
	types *registry.Registry[reflect.Type]
}

// NewTypeRegistry creates a TypeRegistry that already knows Request under
// both its qualified and its reserved short name.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{types: registry.New[reflect.Type]("request type")}
	RegisterType[Request](r, DefaultRequestTypeName)
	return r
}

// Register stores t under name, or under its qualified name when name is
// empty. Pointer types are stored as their element type.
func (r *TypeRegistry) Register(name string, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name == "" {
		name = QualifiedName(t)
	}
	r.types.Set(name, t)
}

// Lookup returns the type registered under name.
func (r *TypeRegistry) Lookup(name string) (reflect.Type, error) {
	return r.types.Get(name)
}

// Names returns all registered names.
func (r *TypeRegistry) Names() []string {
	return r.types.Names()
}

// RegisterType registers T under its qualified name plus any extra aliases
// and returns the stored type.
func RegisterType[T any](r *TypeRegistry, aliases ...string) reflect.Type {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.Register("", t)
	for _, alias := range aliases {
		r.Register(alias, t)
	}
	return t
}

// QualifiedName returns "<import path>.<TypeName>" for named types and the
// type's string form otherwise.
func QualifiedName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
