package input

import (
	"reflect"
	"strings"
	"sync"
)

// field is one settable request field.
type field struct {
	// key is the input key the field reads by default.
	key   string
	name  string
	index []int
}

type fieldTable struct {
	fields []field
	byKey  map[string]int
}

// lookup finds a field by input key or Go field name.
func (t *fieldTable) lookup(name string) (field, bool) {
	if i, ok := t.byKey[name]; ok {
		return t.fields[i], true
	}
	for _, f := range t.fields {
		if f.name == name {
			return f, true
		}
	}
	return field{}, false
}

var fieldCache sync.Map // reflect.Type -> *fieldTable

// fieldsOf returns the field table of struct type t, building it once.
func fieldsOf(t reflect.Type) *fieldTable {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(*fieldTable)
	}
	table := buildFieldTable(t)
	actual, _ := fieldCache.LoadOrStore(t, table)
	return actual.(*fieldTable)
}

func buildFieldTable(t reflect.Type) *fieldTable {
	table := &fieldTable{byKey: make(map[string]int)}
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		key, skip := fieldKey(sf)
		if skip {
			continue
		}
		if _, dup := table.byKey[key]; dup {
			continue
		}
		table.byKey[key] = len(table.fields)
		table.fields = append(table.fields, field{key: key, name: sf.Name, index: sf.Index})
	}
	return table
}

// fieldKey reads the `input` tag, then the `json` tag, then the field name.
func fieldKey(sf reflect.StructField) (string, bool) {
	for _, tag := range []string{"input", "json"} {
		v, ok := sf.Tag.Lookup(tag)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(v, ",")
		if name == "-" {
			return "", true
		}
		if name != "" {
			return name, false
		}
	}
	return sf.Name, false
}
