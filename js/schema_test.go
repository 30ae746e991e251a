package js

import (
	stdjson "encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

type embeddedBase struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

type reflected struct {
	embeddedBase
	Name     string            `json:"title"`
	Skip     string            `json:"-"`
	Optional *int              `json:"optional,omitempty"`
	Bytes    []byte            `json:"bytes"`
	When     time.Time         `json:"when"`
	Tags     map[string]string `json:"tags"`
	Count    int64             `json:"count,string"`
	Raw      RawMessage        `json:"raw"`
	hidden   int
}

func schemaJSON(t *testing.T, s *Schema) gjson.Result {
	t.Helper()
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return gjson.ParseBytes(raw)
}

func TestSchemaForStruct(t *testing.T) {
	s := schemaJSON(t, SchemaFor(reflect.TypeFor[reflected]()))
	if s.Get("type").String() != "object" || s.Get("additionalProperties").Bool() {
		t.Fatalf("unexpected root %s", s.Raw)
	}
	props := s.Get("properties")
	for _, name := range []string{"id", "name", "title", "optional", "bytes", "when", "tags", "count", "raw"} {
		if !props.Get(name).Exists() {
			t.Errorf("missing property %s in %s", name, props.Raw)
		}
	}
	for _, name := range []string{"Skip", "hidden", "embeddedBase"} {
		if props.Get(name).Exists() {
			t.Errorf("unexpected property %s", name)
		}
	}
	if props.Get("id.type").String() != "integer" {
		t.Errorf("promoted field lost its type: %s", props.Get("id").Raw)
	}
	if props.Get("optional.anyOf.1.type").String() != "null" {
		t.Errorf("pointer should be nullable: %s", props.Get("optional").Raw)
	}
	if props.Get("bytes.type").Raw != `["string","null"]` {
		t.Errorf("bytes should be a string: %s", props.Get("bytes").Raw)
	}
	if props.Get("when.type").String() != "string" || props.Get("count.type").String() != "string" {
		t.Errorf("time and ,string fields encode as strings")
	}
	if props.Get("tags.additionalProperties.type").String() != "string" {
		t.Errorf("map values lost: %s", props.Get("tags").Raw)
	}
	if props.Get("raw").Raw != "true" {
		t.Errorf("raw message accepts anything: %s", props.Get("raw").Raw)
	}
	required := s.Get("required").String()
	if strings.Contains(required, "optional") || !strings.Contains(required, "title") {
		t.Errorf("unexpected required list %s", required)
	}
}

type leftBase struct {
	Shared string `json:"shared"`
	Plain  int
	Tie    int
	Deep   int `json:"deep"`
}

type rightBase struct {
	Shared string `json:"shared"`
	Plain  int
	Other  int `json:"Tie"`
}

type deepBase struct {
	Deep string `json:"deep"`
}

type nestedBase struct {
	deepBase
}

type conflicting struct {
	leftBase
	rightBase
	nestedBase
}

func TestSchemaDropsAmbiguousFields(t *testing.T) {
	props := schemaJSON(t, SchemaFor(reflect.TypeFor[conflicting]())).Get("properties")
	raw, err := stdjson.Marshal(conflicting{})
	if err != nil {
		t.Fatal(err)
	}
	emitted := map[string]bool{}
	gjson.ParseBytes(raw).ForEach(func(key, _ gjson.Result) bool {
		emitted[key.String()] = true
		return true
	})
	for name := range emitted {
		if !props.Get(gjson.Escape(name)).Exists() {
			t.Errorf("encoding/json emits %s but the schema lacks it: %s", name, props.Raw)
		}
	}
	props.ForEach(func(key, _ gjson.Result) bool {
		if !emitted[key.String()] {
			t.Errorf("schema lists %s, which encoding/json never emits", key.String())
		}
		return true
	})
	for _, name := range []string{"shared", "Plain"} {
		if props.Get(name).Exists() {
			t.Errorf("ambiguous field %s must be dropped", name)
		}
	}
	if !props.Get("Tie").Exists() || props.Get("deep.type").String() != "integer" {
		t.Errorf("tagged and shallow fields must win: %s", props.Raw)
	}
}

func TestSchemaForRecursiveStruct(t *testing.T) {
	s := schemaJSON(t, SchemaFor(reflect.TypeFor[remoteTree]()))
	ref := s.Get(`\$ref`).String()
	if !strings.HasPrefix(ref, "#/$defs/") {
		t.Fatalf("recursive root should be a reference: %s", s.Raw)
	}
	name := strings.TrimPrefix(ref, "#/$defs/")
	def := s.Get(`\$defs`).Get(gjson.Escape(name))
	if def.Get("properties.children.items.\\$ref").String() != ref {
		t.Fatalf("children should point back at the definition: %s", def.Raw)
	}
}

func TestSchemaMarkers(t *testing.T) {
	for _, tc := range []struct {
		s   *Schema
		key string
	}{
		{RemoteObject{}.JSONSchema(), RemoteKey},
		{BigInt{}.JSONSchema(), BigIntKey},
		{Undefined{}.JSONSchema(), UndefinedKey},
	} {
		s := schemaJSON(t, tc.s)
		if !s.Get("properties").Get(gjson.Escape(tc.key)).Exists() {
			t.Errorf("marker %s missing in %s", tc.key, s.Raw)
		}
	}
	if raw, _ := json.Marshal(Void{}.JSONSchema()); string(raw) != `{"type":"null"}` {
		t.Errorf("unexpected void schema %s", raw)
	}
}
