package js

import (
	"bytes"
	"strconv"
	"strings"
)

// Segment is one step of a Pointer: an object field or an array index.
type Segment struct {
	field   string
	index   int
	isIndex bool
}

func Field(name string) Segment {
	return Segment{field: name}
}
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

func (obj Segment) IsIndex() bool {
	return obj.isIndex
}
func (obj Segment) Field() string {
	return obj.field
}
func (obj Segment) Index() int {
	return obj.index
}
func (obj Segment) String() string {
	if obj.isIndex {
		return strconv.Itoa(obj.index)
	}
	return obj.field
}

// Less orders indices before fields.
func (obj Segment) Less(other Segment) bool {
	if obj.isIndex != other.isIndex {
		return obj.isIndex
	}
	if obj.isIndex {
		return obj.index < other.index
	}
	return obj.field < other.field
}

func (obj Segment) MarshalJSON() ([]byte, error) {
	if obj.isIndex {
		return []byte(strconv.Itoa(obj.index)), nil
	}
	return json.Marshal(obj.field)
}

func (obj *Segment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*obj = Segment{}
		return json.Unmarshal(data, &obj.field)
	}
	i, err := strconv.Atoi(string(data))
	if err != nil {
		return unexpected("invalid pointer segment %s", data)
	}
	*obj = Index(i)
	return nil
}

// Pointer addresses a location in a JSON document.
type Pointer []Segment

func (obj Pointer) Append(seg Segment) Pointer {
	out := make(Pointer, len(obj), len(obj)+1)
	copy(out, obj)
	return append(out, seg)
}

func (obj Pointer) Less(other Pointer) bool {
	for i := 0; i < len(obj) && i < len(other); i++ {
		if obj[i].Less(other[i]) {
			return true
		}
		if other[i].Less(obj[i]) {
			return false
		}
	}
	return len(obj) < len(other)
}

// String renders the pointer in RFC 6901 form.
func (obj Pointer) String() string {
	var builder strings.Builder
	for _, seg := range obj {
		builder.WriteByte('/')
		builder.WriteString(strings.NewReplacer("~", "~0", "/", "~1").Replace(seg.String()))
	}
	return builder.String()
}
