package spec

import (
	"strings"

	"github.com/mark3labs/oasassemble/internal/jsonv"
)

const (
	// RefKey is the member holding a schema reference.
	RefKey = "$ref"
	// DefsKey is the member holding a locally scoped definitions block.
	DefsKey = "$defs"
	// SchemaRefPrefix is where every reference points after normalization.
	SchemaRefPrefix = "#/components/schemas/"
)

// SchemaRef returns the canonical reference for a model name.
func SchemaRef(name string) string { return SchemaRefPrefix + name }

// RefName returns the model name a reference points at: its last path
// segment. ok is false when that segment is empty.
func RefName(ref string) (name string, ok bool) {
	name = ref[strings.LastIndex(ref, "/")+1:]
	return name, name != ""
}

// IsRefNode reports whether obj is a reference node.
func IsRefNode(obj *jsonv.Obj) bool {
	_, ok := obj.String(RefKey)
	return ok
}

// NormalizeRefs rewrites every $ref under v to point into
// #/components/schemas, keyed by the referenced model's base name. Reference
// nodes are not descended into. Running it twice is the same as running it
// once.
func NormalizeRefs(v jsonv.Value) error {
	return jsonv.Walk(v, func(ptr string, obj *jsonv.Obj) (bool, error) {
		ref, ok := obj.String(RefKey)
		if !ok {
			return false, nil
		}
		name, ok := RefName(ref)
		if !ok {
			return true, &InvalidReferenceError{Ref: ref, JSONPointer: "#" + ptr}
		}
		obj.Set(RefKey, jsonv.StringValue(SchemaRef(name)))
		return true, nil
	})
}

