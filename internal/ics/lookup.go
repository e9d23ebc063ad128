package ics

import (
	"github.com/samber/mo"

	"remhind/internal/model"
)

// ResolveComponentByUID re-reads a single source and returns the VEVENT
// with the given UID. Tasks are never returned through this path, even
// when a VTODO carries the UID.
func ResolveComponentByUID(uid string, raw []byte) (mo.Option[model.Component], error) {
	comps, err := Parse(uid, raw)
	if err != nil {
		return mo.None[model.Component](), err
	}
	for _, c := range comps {
		if c.UID == uid && c.Kind == model.KindEvent {
			return mo.Some(c), nil
		}
	}
	return mo.None[model.Component](), nil
}
