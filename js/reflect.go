package js

import (
	"encoding"
	stdjson "encoding/json"
	"reflect"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var (
	schemaerType      = reflect.TypeFor[Schemaer]()
	marshalerType     = reflect.TypeFor[stdjson.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	timeType          = reflect.TypeFor[time.Time]()
	numberType        = reflect.TypeFor[stdjson.Number]()
	rawMessageType    = reflect.TypeFor[stdjson.RawMessage]()
	iterRawType       = reflect.TypeFor[jsoniter.RawMessage]()
	iterNumberType    = reflect.TypeFor[jsoniter.Number]()
)

// SchemaFor reflects the JSON shape of t following encoding/json rules.
// Self-referencing structs are emitted once under $defs.
func SchemaFor(t reflect.Type) *Schema {
	r := &reflector{
		active:    map[reflect.Type]bool{},
		recursive: map[reflect.Type]bool{},
		defs:      map[string]*Schema{},
	}
	root := r.reflect(t)
	if len(r.defs) > 0 {
		if root.Bool != nil {
			root = &Schema{AllOf: []*Schema{root}}
		}
		root.Defs = r.defs
	}
	return root
}

type reflector struct {
	active    map[reflect.Type]bool
	recursive map[reflect.Type]bool
	defs      map[string]*Schema
}

func defName(t reflect.Type) string {
	name := t.PkgPath() + "." + t.Name()
	return strings.NewReplacer("/", "_", "~", "_").Replace(name)
}

func (obj *reflector) reflect(t reflect.Type) *Schema {
	if t == nil {
		return BoolSchema(true)
	}
	if t.Kind() == reflect.Pointer {
		return NullableSchema(obj.reflect(t.Elem()))
	}
	switch t {
	case timeType:
		return &Schema{Type: []string{"string"}, Format: "date-time"}
	case numberType, iterNumberType:
		return TypeSchema("number")
	case rawMessageType, iterRawType:
		return BoolSchema(true)
	}
	if t.Implements(schemaerType) || reflect.PointerTo(t).Implements(schemaerType) {
		return reflect.New(t).Interface().(Schemaer).JSONSchema()
	}
	if t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType) {
		return BoolSchema(true)
	}
	if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return TypeSchema("string")
	}
	switch t.Kind() {
	case reflect.Bool:
		return TypeSchema("boolean")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return TypeSchema("integer")
	case reflect.Float32, reflect.Float64:
		return TypeSchema("number")
	case reflect.String:
		return TypeSchema("string")
	case reflect.Interface:
		return BoolSchema(true)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !reflect.PointerTo(t.Elem()).Implements(marshalerType) {
			return TypeSchema("string", "null")
		}
		return &Schema{Type: []string{"array", "null"}, Items: obj.reflect(t.Elem())}
	case reflect.Array:
		return &Schema{Type: []string{"array"}, Items: obj.reflect(t.Elem())}
	case reflect.Map:
		switch t.Key().Kind() {
		case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return &Schema{Type: []string{"object", "null"}, AdditionalProperties: obj.reflect(t.Elem())}
		}
		return BoolSchema(true)
	case reflect.Struct:
		return obj.reflectStruct(t)
	}
	return BoolSchema(false)
}

func (obj *reflector) reflectStruct(t reflect.Type) *Schema {
	if t.Name() != "" && obj.active[t] {
		obj.recursive[t] = true
		return &Schema{Ref: "#/$defs/" + defName(t)}
	}
	obj.active[t] = true
	s := &Schema{
		Type:                 []string{"object"},
		Properties:           map[string]*Schema{},
		AdditionalProperties: BoolSchema(false),
	}
	for _, f := range structFields(t) {
		s.Properties[f.name] = f.schema(obj)
		if !f.omitEmpty {
			s.Required = append(s.Required, f.name)
		}
	}
	delete(obj.active, t)
	if obj.recursive[t] {
		name := defName(t)
		obj.defs[name] = s
		return &Schema{Ref: "#/$defs/" + name}
	}
	return s
}

type structField struct {
	name      string
	typ       reflect.Type
	depth     int
	tagged    bool
	omitEmpty bool
	asString  bool
}

func (obj structField) schema(r *reflector) *Schema {
	if obj.asString {
		return TypeSchema("string")
	}
	return r.reflect(obj.typ)
}

// structFields lists the fields encoding/json would emit, promoting embedded
// structs. The shallowest field wins a name and a tag breaks ties; a name
// still ambiguous after that is dropped.
func structFields(t reflect.Type) []structField {
	var candidates []structField
	var visit func(t reflect.Type, depth int, seen map[reflect.Type]bool)
	visit = func(t reflect.Type, depth int, seen map[reflect.Type]bool) {
		if seen[t] {
			return
		}
		seen[t] = true
		defer delete(seen, t)
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			tag := sf.Tag.Get("json")
			if tag == "-" {
				continue
			}
			name, opts, _ := strings.Cut(tag, ",")
			ft := sf.Type
			if sf.Anonymous && name == "" {
				et := ft
				if et.Kind() == reflect.Pointer {
					et = et.Elem()
				}
				if et.Kind() == reflect.Struct {
					visit(et, depth+1, seen)
					continue
				}
			}
			if !sf.IsExported() {
				continue
			}
			f := structField{
				name:   name,
				typ:    ft,
				depth:  depth,
				tagged: name != "",
			}
			if f.name == "" {
				f.name = sf.Name
			}
			for _, opt := range strings.Split(opts, ",") {
				switch opt {
				case "omitempty", "omitzero":
					f.omitEmpty = true
				case "string":
					switch ft.Kind() {
					case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
						reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
						reflect.Float32, reflect.Float64, reflect.String:
						f.asString = true
					}
				}
			}
			candidates = append(candidates, f)
		}
	}
	visit(t, 0, map[reflect.Type]bool{})
	byName := map[string][]structField{}
	var order []string
	for _, f := range candidates {
		if _, ok := byName[f.name]; !ok {
			order = append(order, f.name)
		}
		byName[f.name] = append(byName[f.name], f)
	}
	fields := make([]structField, 0, len(order))
	for _, name := range order {
		if f, ok := dominantField(byName[name]); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func dominantField(fields []structField) (structField, bool) {
	depth := fields[0].depth
	for _, f := range fields[1:] {
		depth = min(depth, f.depth)
	}
	var shallow, tagged []structField
	for _, f := range fields {
		if f.depth != depth {
			continue
		}
		shallow = append(shallow, f)
		if f.tagged {
			tagged = append(tagged, f)
		}
	}
	switch {
	case len(shallow) == 1:
		return shallow[0], true
	case len(tagged) == 1:
		return tagged[0], true
	}
	return structField{}, false
}
