package input

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const arrayLogPrefix = "input:array"

// Array copies the entries of a map input onto request fields.
//
// Fields are matched by their `input` tag, their `json` tag or their name,
// falling back to a case-insensitive key match. The optional "map" option
// renames input keys: {inputKey: requestField}. Missing and null entries leave
// the field untouched. Values are converted with weak typing, so "42" fills an
// int field. A *usecase.Request receives every entry.
type Array struct{}

// InitializeRequest implements Processor.
func (Array) InitializeRequest(ctx context.Context, request interface{}, input interface{}, opts *options.Map) error {
	data, err := toValues(input)
	if err != nil {
		return err
	}
	return populate(request, data, opts)
}

// populate copies data onto request using the "map" option of opts.
func populate(request interface{}, data *options.Map, opts *options.Map) error {
	if data.Len() == 0 {
		return nil
	}
	renames, err := fieldMap(opts)
	if err != nil {
		return err
	}

	if req, ok := request.(*usecase.Request); ok {
		data.Each(func(key string, value interface{}) bool {
			if value == nil {
				return true
			}
			if target, ok := renames[key]; ok {
				key = target
			}
			req.Set(key, plainValue(value))
			return true
		})
		return nil
	}

	rv := reflect.ValueOf(request)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%s - request must be a pointer to a struct, got %T", arrayLogPrefix, request)
	}
	target := rv.Elem()
	table := fieldsOf(target.Type())

	// field name -> input key
	sources := make(map[string]string, len(renames))
	for inputKey, fieldName := range renames {
		if f, ok := table.lookup(fieldName); ok {
			sources[f.name] = inputKey
		}
	}

	for _, f := range table.fields {
		key := f.key
		if src, ok := sources[f.name]; ok {
			key = src
		}
		value, ok := lookupValue(data, key)
		if !ok || value == nil {
			continue
		}
		fv, err := target.FieldByIndexErr(f.index)
		if err != nil || !fv.CanSet() {
			continue
		}
		if err := assign(fv, value); err != nil {
			return usecase.WrapAlternativeCourse(400, fmt.Sprintf("invalid value for %q", key), err)
		}
	}
	return nil
}

func assign(fv reflect.Value, value interface{}) error {
	value = plainValue(value)
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(fv.Type()) {
		fv.Set(v)
		return nil
	}
	return mapstructure.WeakDecode(value, fv.Addr().Interface())
}

func lookupValue(data *options.Map, key string) (interface{}, bool) {
	if v, ok := data.Get(key); ok {
		return v, true
	}
	var (
		found interface{}
		ok    bool
	)
	data.Each(func(k string, v interface{}) bool {
		if strings.EqualFold(k, key) {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

// fieldMap reads the "map" option as inputKey -> requestField.
func fieldMap(opts *options.Map) (map[string]string, error) {
	raw, ok := opts.Get("map")
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := options.From(raw)
	if !ok {
		return nil, fmt.Errorf("%s - option \"map\" must be a map, got %T", arrayLogPrefix, raw)
	}
	out := make(map[string]string, m.Len())
	var bad error
	m.Each(func(k string, v interface{}) bool {
		s, ok := v.(string)
		if !ok {
			bad = fmt.Errorf("%s - option \"map\" entry %q must name a field, got %T", arrayLogPrefix, k, v)
			return false
		}
		out[k] = s
		return true
	})
	return out, bad
}

// toValues normalizes the supported map inputs.
func toValues(input interface{}) (*options.Map, error) {
	switch t := input.(type) {
	case nil:
		return options.New(), nil
	case url.Values:
		return fromMultiValues(t), nil
	case map[string][]string:
		return fromMultiValues(t), nil
	case *usecase.Request:
		return options.MustFrom(t.Values()), nil
	}
	if m, ok := options.From(input); ok {
		return m, nil
	}
	return nil, fmt.Errorf("%s - unsupported input type %T", arrayLogPrefix, input)
}

// fromMultiValues keeps single values as strings and repeated ones as slices.
func fromMultiValues(values map[string][]string) *options.Map {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := options.New()
	for _, k := range keys {
		out.Set(k, collapse(values[k]))
	}
	return out
}

func collapse(vs []string) interface{} {
	switch len(vs) {
	case 0:
		return nil
	case 1:
		return vs[0]
	}
	return append([]string(nil), vs...)
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *options.Map:
		return t.ToMap()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	}
	return v
}
