package js

import (
	jsoniter "github.com/json-iterator/go"
)

// numbers stay json.Number so integers above 2^53 survive the skeleton round trip
var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

type RawMessage = jsoniter.RawMessage

func toTree(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, serialization(err)
	}
	var tree any
	if err = json.Unmarshal(data, &tree); err != nil {
		return nil, serialization(err)
	}
	return tree, nil
}
