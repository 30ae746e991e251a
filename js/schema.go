package js

// Schema is the JSON Schema subset the return-mode planner and the harness understand.
type Schema struct {
	Bool                 *bool              `json:"-"`
	Type                 []string           `json:"-"`
	Format               string             `json:"format,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	PrefixItems          []*Schema          `json:"prefixItems,omitempty"`
	OneOf                []*Schema          `json:"oneOf,omitempty"`
	AnyOf                []*Schema          `json:"anyOf,omitempty"`
	AllOf                []*Schema          `json:"allOf,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Defs                 map[string]*Schema `json:"$defs,omitempty"`
}

// Schemaer lets a type describe its own JSON shape.
type Schemaer interface {
	JSONSchema() *Schema
}

func BoolSchema(v bool) *Schema {
	return &Schema{Bool: &v}
}

func TypeSchema(types ...string) *Schema {
	return &Schema{Type: types}
}

// MarkerSchema describes a single-key marker object.
func MarkerSchema(key string, body *Schema) *Schema {
	return &Schema{
		Type:                 []string{"object"},
		Properties:           map[string]*Schema{key: body},
		Required:             []string{key},
		AdditionalProperties: BoolSchema(false),
	}
}

func NullableSchema(s *Schema) *Schema {
	return &Schema{AnyOf: []*Schema{s, TypeSchema("null")}}
}

type plainSchema Schema

func (obj *Schema) MarshalJSON() ([]byte, error) {
	if obj == nil {
		return []byte("true"), nil
	}
	if obj.Bool != nil {
		if *obj.Bool {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	}
	var kind any
	switch len(obj.Type) {
	case 0:
	case 1:
		kind = obj.Type[0]
	default:
		kind = obj.Type
	}
	return json.Marshal(struct {
		Type any `json:"type,omitempty"`
		*plainSchema
	}{Type: kind, plainSchema: (*plainSchema)(obj)})
}
