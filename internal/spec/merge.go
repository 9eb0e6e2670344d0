package spec

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/oasassemble/internal/jsonv"
)

// Merger lifts locally scoped "$defs" blocks into the model registry.
type Merger struct {
	log      *slog.Logger
	warnings []Warning
}

// NewMerger returns a Merger logging conflicts to log (nil discards).
func NewMerger(log *slog.Logger) *Merger {
	if log == nil {
		log = discardLogger()
	}
	return &Merger{log: log}
}

// Warnings returns the conflicts recorded so far.
func (m *Merger) Warnings() []Warning { return m.warnings }

// Merge moves every "$defs" block found under doc into registry and removes
// it from its host. New names are inserted; a name already present with a
// structurally equal schema is dropped; a name present with a different
// schema is recorded as a conflict and the existing definition is kept.
// Schemas are compared with their references canonicalized, so Merge gives
// the same answer before and after NormalizeRefs.
//
// registry itself may live inside doc; its own members are never treated as
// a host. Merge returns the number of blocks lifted.
func (m *Merger) Merge(doc jsonv.Value, registry *jsonv.Obj) (int, error) {
	type host struct {
		ptr string
		obj *jsonv.Obj
	}
	var hosts []host
	err := jsonv.Walk(doc, func(ptr string, obj *jsonv.Obj) (bool, error) {
		if obj == registry {
			// The registry's own members are definitions, not hosts; still
			// look inside each definition for nested blocks.
			return false, nil
		}
		if obj.Object(DefsKey) != nil {
			hosts = append(hosts, host{ptr: ptr, obj: obj})
		}
		return false, nil
	})
	if err != nil {
		return 0, err
	}

	for _, h := range hosts {
		defs := h.obj.Object(DefsKey)
		if defs == nil {
			continue
		}
		h.obj.Delete(DefsKey)
		var mergeErr error
		defs.Range(func(name string, schema jsonv.Value) bool {
			mergeErr = m.mergeOne(registry, name, schema, h.ptr)
			return mergeErr == nil
		})
		if mergeErr != nil {
			return 0, mergeErr
		}
	}
	return len(hosts), nil
}

func (m *Merger) mergeOne(registry *jsonv.Obj, name string, incoming jsonv.Value, hostPtr string) error {
	existing, ok := registry.Get(name)
	if !ok {
		registry.Set(name, incoming)
		return nil
	}
	a, err := comparableForm(existing)
	if err != nil {
		return err
	}
	b, err := comparableForm(incoming)
	if err != nil {
		return err
	}
	if jsonv.Equal(a, b) {
		return nil
	}
	w := Warning{
		Category: WarnSchemaConflict,
		Pointer:  "#" + hostPtr + "/" + DefsKey + "/" + jsonv.EscapePointer(name),
		Message:  fmt.Sprintf("Two differing schemas found for %q", name),
	}
	m.warnings = append(m.warnings, w)
	m.log.Warn("differing schemas share a model name; keeping the first", "model", name, "pointer", w.Pointer)
	return nil
}

// comparableForm returns a copy of v with nested "$defs" blocks dropped and
// references canonicalized. Nested blocks are lifted and checked on their
// own, so they must not make two otherwise equal definitions differ.
func comparableForm(v jsonv.Value) (jsonv.Value, error) {
	c := v.Clone()
	err := jsonv.Walk(c, func(_ string, obj *jsonv.Obj) (bool, error) {
		obj.Delete(DefsKey)
		return false, nil
	})
	if err != nil {
		return jsonv.Value{}, err
	}
	if err := NormalizeRefs(c); err != nil {
		return jsonv.Value{}, err
	}
	return c, nil
}
