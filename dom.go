package cdpjs

import (
	"context"

	"github.com/gospider007/cdpjs/js"
)

// Dom is a handle to a DOM node. It is an ordinary remote object whose
// NodeId and BackendNodeId were resolved when it crossed the boundary.
type Dom struct {
	js.RemoteObject
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// QuerySelector returns nil when nothing under the node matches.
func (obj Dom) QuerySelector(ctx context.Context, selector string) (*Dom, error) {
	return js.InvokeMethod[*Dom](ctx, obj.RemoteObject, "querySelector", selector)
}
func (obj Dom) QuerySelectorAll(ctx context.Context, selector string) ([]Dom, error) {
	return js.EvalOn[[]Dom](ctx, obj.RemoteObject, "Array.from(this.querySelectorAll(arguments[0]))", selector)
}

func (obj Dom) OuterHTML(ctx context.Context) (string, error) {
	return js.GetProperty[string](ctx, obj.RemoteObject, "outerHTML")
}
func (obj Dom) SetOuterHTML(ctx context.Context, html string) error {
	return js.SetProperty(ctx, obj.RemoteObject, "outerHTML", html)
}

func (obj Dom) Text(ctx context.Context) (string, error) {
	text, err := js.GetProperty[*string](ctx, obj.RemoteObject, "textContent")
	if err != nil || text == nil {
		return "", err
	}
	return *text, nil
}

// Attribute reports false when the attribute is not set.
func (obj Dom) Attribute(ctx context.Context, name string) (string, bool, error) {
	value, err := js.InvokeMethod[*string](ctx, obj.RemoteObject, "getAttribute", name)
	if err != nil || value == nil {
		return "", false, err
	}
	return *value, true, nil
}
func (obj Dom) SetAttribute(ctx context.Context, name, value string) error {
	_, err := js.InvokeMethod[js.Void](ctx, obj.RemoteObject, "setAttribute", name, value)
	return err
}

func (obj Dom) Rect(ctx context.Context) (Rect, error) {
	return js.InvokeMethod[Rect](ctx, obj.RemoteObject, "getBoundingClientRect")
}

// Show scrolls the node into the middle of the viewport.
func (obj Dom) Show(ctx context.Context) error {
	_, err := js.InvokeMethod[js.Void](ctx, obj.RemoteObject, "scrollIntoView", map[string]string{"block": "center", "inline": "center"})
	return err
}

func (obj Dom) Focus(ctx context.Context) error {
	_, err := js.InvokeMethod[js.Void](ctx, obj.RemoteObject, "focus")
	return err
}

// Click dispatches a synthetic click through HTMLElement.click.
func (obj Dom) Click(ctx context.Context) error {
	_, err := js.InvokeMethod[js.Void](ctx, obj.RemoteObject, "click")
	return err
}

// Clone returns a second handle to the same node.
func (obj Dom) Clone() Dom {
	return Dom{RemoteObject: obj.RemoteObject.Clone()}
}
