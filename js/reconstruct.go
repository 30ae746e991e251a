package js

import (
	"context"
	"strconv"

	"github.com/gospider007/cdpjs/cdp"
	"golang.org/x/sync/errgroup"
)

const resolveLimit = 8

// reconstruction is the JSON document of one result plus the remote ids it hands out.
type reconstruction struct {
	doc     RawMessage
	remotes []cdp.RemoteObjectId
}

func exceptionOf(details *cdp.ExceptionDetails, g *guard) error {
	if details == nil {
		return nil
	}
	if details.Exception != nil {
		g.Add(details.Exception.ObjectId)
	}
	return &ExceptionError{Details: *details}
}

// parseRemoteObject converts a single-round-trip result into a document.
func parseRemoteObject(ctx context.Context, sess *cdp.Session, contextId cdp.ExecutionContextId, ro cdp.RemoteObject) (reconstruction, error) {
	if ro.ObjectId != "" || ro.Type == "bigint" || ro.Type == "undefined" {
		special, err := specialFromRemoteObject(ctx, sess, contextId, ro)
		if err != nil {
			return reconstruction{remotes: idsOf(special)}, err
		}
		doc, err := json.Marshal(special.Marker())
		if err != nil {
			return reconstruction{remotes: idsOf(special)}, serialization(err)
		}
		return reconstruction{doc: doc, remotes: idsOf(special)}, nil
	}
	if ro.UnserializableValue != "" {
		if ro.UnserializableValue == "-0" {
			return reconstruction{doc: RawMessage("0")}, nil
		}
		return reconstruction{doc: RawMessage("null")}, nil
	}
	if len(ro.Value) == 0 {
		return reconstruction{doc: RawMessage("null")}, nil
	}
	return reconstruction{doc: ro.Value}, nil
}

func idsOf(specials ...SpecialValue) []cdp.RemoteObjectId {
	var ids []cdp.RemoteObjectId
	for _, special := range specials {
		if special.Kind == SpecialRemote && special.Remote.Id != "" {
			ids = append(ids, special.Remote.Id)
		}
	}
	return ids
}

// reconstructComplex fetches the skeleton and, when it has holes, the specials
// array, then splices the specials back in.
func reconstructComplex(ctx context.Context, sess *cdp.Session, contextId cdp.ExecutionContextId, resultId cdp.RemoteObjectId) (reconstruction, error) {
	g := newGuard(sess)
	defer g.Release()
	g.Add(resultId)

	resp, err := sess.RuntimeCallFunctionOn(ctx, cdp.CallFunctionOnParams{
		FunctionDeclaration: "function () { return this.descriptor; }",
		ObjectId:            resultId,
		ReturnByValue:       true,
	})
	if err != nil {
		return reconstruction{}, err
	}
	if err = exceptionOf(resp.ExceptionDetails, g); err != nil {
		return reconstruction{}, err
	}
	if len(resp.Result.Value) == 0 {
		return reconstruction{}, unexpected("invalid descriptor of type %q", resp.Result.Type)
	}
	var descriptor struct {
		Value RawMessage `json:"value"`
		Paths []Pointer  `json:"paths"`
	}
	if err = json.Unmarshal(resp.Result.Value, &descriptor); err != nil {
		return reconstruction{}, unexpected("invalid descriptor: %v", err)
	}
	if len(descriptor.Value) == 0 {
		descriptor.Value = RawMessage("null")
	}
	if len(descriptor.Paths) == 0 {
		return reconstruction{doc: descriptor.Value}, nil
	}

	resp, err = sess.RuntimeCallFunctionOn(ctx, cdp.CallFunctionOnParams{
		FunctionDeclaration: "function () { return this.specials; }",
		ObjectId:            resultId,
	})
	if err != nil {
		return reconstruction{}, err
	}
	if err = exceptionOf(resp.ExceptionDetails, g); err != nil {
		return reconstruction{}, err
	}
	arrayId := resp.Result.ObjectId
	if arrayId == "" {
		return reconstruction{}, unexpected("invalid specials of type %q", resp.Result.Type)
	}
	g.Add(arrayId)

	props, err := sess.RuntimeGetProperties(ctx, arrayId, true)
	if err != nil {
		return reconstruction{}, err
	}
	if err = exceptionOf(props.ExceptionDetails, g); err != nil {
		return reconstruction{}, err
	}
	// element handles are released on failure and handed to the result on success
	itemsGuard := newGuard(sess)
	defer itemsGuard.Release()
	byName := make(map[string]*cdp.RemoteObject, len(props.Result))
	for i := range props.Result {
		if props.Result[i].Value != nil {
			byName[props.Result[i].Name] = props.Result[i].Value
			itemsGuard.Add(props.Result[i].Value.ObjectId)
		}
	}
	length := -1
	if lengthObj, ok := byName["length"]; ok {
		if n, err := strconv.Atoi(string(lengthObj.Value)); err == nil {
			length = n
		}
	}
	if length != len(descriptor.Paths) {
		return reconstruction{}, unexpected("specials length %d does not match %d paths", length, len(descriptor.Paths))
	}
	items := make([]cdp.RemoteObject, length)
	for i := range items {
		item, ok := byName[strconv.Itoa(i)]
		if !ok {
			return reconstruction{}, unexpected("specials element %d missing", i)
		}
		items[i] = *item
	}

	specials := make([]SpecialValue, length)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(resolveLimit)
	for i := range items {
		eg.Go(func() error {
			special, err := specialFromRemoteObject(egCtx, sess, contextId, items[i])
			specials[i] = special
			return err
		})
	}
	if err = eg.Wait(); err != nil {
		return reconstruction{}, err
	}

	var skeleton any
	if err = json.Unmarshal(descriptor.Value, &skeleton); err != nil {
		return reconstruction{}, unexpected("invalid skeleton: %v", err)
	}
	values := make([]any, length)
	for i, special := range specials {
		values[i] = special.Marker()
	}
	merged, err := Merge(skeleton, descriptor.Paths, values)
	if err != nil {
		return reconstruction{}, err
	}
	doc, err := json.Marshal(merged)
	if err != nil {
		return reconstruction{}, serialization(err)
	}
	itemsGuard.Clear()
	return reconstruction{doc: doc, remotes: idsOf(specials...)}, nil
}
