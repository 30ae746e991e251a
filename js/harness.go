package js

import (
	_ "embed"
	"strings"

	"github.com/gospider007/cdpjs/cdp"
	"github.com/tidwall/sjson"
)

//go:embed harness.js
var harnessTemplate string

const (
	evalWrapper   = "function () { return (__EXPR__); }"
	invokeWrapper = "function () { return (__EXPR__).apply(this, arguments); }"
)

// harnessSource substitutes the user function and the expression injection list.
func harnessSource(fn string, exprs []ExprEntry) (string, error) {
	var list strings.Builder
	for i, entry := range exprs {
		path, err := json.Marshal(entry.Path)
		if err != nil {
			return "", serialization(err)
		}
		if i > 0 {
			list.WriteString(",")
		}
		list.WriteString("{ path: ")
		list.Write(path)
		list.WriteString(", value: (()=>(")
		list.WriteString(entry.Expr)
		list.WriteString("))() }")
	}
	return strings.NewReplacer("__EXPR_FUNC__", fn, "__EXPR_LIST__", list.String()).Replace(harnessTemplate), nil
}

func wrapEval(expr string) string {
	return strings.Replace(evalWrapper, "__EXPR__", expr, 1)
}

func wrapInvoke(fn string) string {
	return strings.Replace(invokeWrapper, "__EXPR__", fn, 1)
}

// harnessConfig is the first call argument: mode, await flag, schema and marker keys.
func harnessConfig(plan *Plan, awaitPromise bool) (cdp.CallArgument, error) {
	raw := `{}`
	var err error
	for _, set := range []struct {
		path  string
		value any
	}{
		{"returnMode", plan.Mode.String()},
		{"awaitPromise", awaitPromise},
		{"keys.remote", RemoteKey},
		{"keys.bigint", BigIntKey},
		{"keys.undefined", UndefinedKey},
	} {
		if raw, err = sjson.Set(raw, set.path, set.value); err != nil {
			return cdp.CallArgument{}, serialization(err)
		}
	}
	if raw, err = sjson.SetRaw(raw, "schema", string(plan.SchemaJSON)); err != nil {
		return cdp.CallArgument{}, serialization(err)
	}
	return cdp.CallArgument{Value: RawMessage(raw)}, nil
}

func descriptorArgument(desc ValueDescriptor) (cdp.CallArgument, error) {
	raw, err := json.Marshal(desc)
	if err != nil {
		return cdp.CallArgument{}, serialization(err)
	}
	return cdp.CallArgument{Value: raw}, nil
}
