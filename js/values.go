package js

import (
	"bytes"
	"math/big"
)

// BigInt carries a JavaScript bigint.
type BigInt struct {
	Int *big.Int
}

func NewBigInt(v int64) BigInt {
	return BigInt{Int: big.NewInt(v)}
}

func ParseBigInt(digits string) (BigInt, bool) {
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return BigInt{}, false
	}
	return BigInt{Int: v}, true
}

func (obj BigInt) String() string {
	if obj.Int == nil {
		return "0"
	}
	return obj.Int.String()
}

func (obj BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{BigIntKey: obj.String()})
}

// UnmarshalJSON accepts the marker as well as a plain number or decimal string.
func (obj *BigInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*obj = BigInt{}
		return nil
	}
	var digits string
	switch {
	case len(data) > 0 && data[0] == '{':
		var marker map[string]string
		if err := json.Unmarshal(data, &marker); err != nil {
			return err
		}
		var ok bool
		if digits, ok = marker[BigIntKey]; !ok {
			return unexpected("bigint marker missing in %s", data)
		}
	case len(data) > 0 && data[0] == '"':
		if err := json.Unmarshal(data, &digits); err != nil {
			return err
		}
	default:
		digits = string(data)
	}
	v, ok := ParseBigInt(digits)
	if !ok {
		return unexpected("invalid bigint %q", digits)
	}
	*obj = v
	return nil
}

func (BigInt) JSONSchema() *Schema {
	return MarkerSchema(BigIntKey, TypeSchema("string"))
}

// Undefined is the JavaScript undefined value.
type Undefined struct{}

func (Undefined) MarshalJSON() ([]byte, error) {
	return []byte(`{"` + UndefinedKey + `":true}`), nil
}
func (*Undefined) UnmarshalJSON([]byte) error {
	return nil
}
func (Undefined) JSONSchema() *Schema {
	return MarkerSchema(UndefinedKey, BoolSchema(true))
}

// Expr is JavaScript source evaluated in the page and passed in its place.
type Expr string

func (obj Expr) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{ExprKey: string(obj)})
}
func (Expr) JSONSchema() *Schema {
	return BoolSchema(true)
}

// Void discards the result; the code runs only for its side effects.
type Void struct{}

func (*Void) UnmarshalJSON([]byte) error {
	return nil
}
func (Void) JSONSchema() *Schema {
	return TypeSchema("null")
}
