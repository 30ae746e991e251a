package js

import (
	"github.com/gospider007/cdpjs/cdp"
	"go.uber.org/zap"
)

// guard releases every remote id it holds when Release runs, unless the ids
// were handed over with Clear first.
type guard struct {
	sess *cdp.Session
	ids  []cdp.RemoteObjectId
}

func newGuard(sess *cdp.Session) *guard {
	return &guard{sess: sess}
}

func (obj *guard) Add(id cdp.RemoteObjectId) {
	if id == "" {
		return
	}
	for _, have := range obj.ids {
		if have == id {
			return
		}
	}
	obj.ids = append(obj.ids, id)
}

func (obj *guard) Clear() {
	obj.ids = nil
}

func (obj *guard) Release() {
	for _, id := range obj.ids {
		if err := obj.sess.RuntimeReleaseObjectNoWait(id); err != nil {
			obj.sess.Logger().Debug("release remote object", zap.String("objectId", string(id)), zap.Error(err))
		}
	}
	obj.ids = nil
}
