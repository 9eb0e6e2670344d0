package spec

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeRefs_RewritesEverywhere(t *testing.T) {
	t.Parallel()
	doc := mustValue(t, `{
		"paths": {"/a": {"get": {
			"requestBody": {"content": {"application/json": {"schema": {"$ref": "#/$defs/Body"}}}},
			"parameters": [{"schema": {"$ref": "#/definitions/Param"}}]
		}}},
		"components": {"schemas": {
			"Wrapper": {"properties": {"items": {"type": "array", "items": {"$ref": "Item"}}}}
		}}
	}`)
	if err := NormalizeRefs(doc); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := `{"paths":{"/a":{"get":{` +
		`"requestBody":{"content":{"application/json":{"schema":{"$ref":"#/components/schemas/Body"}}}},` +
		`"parameters":[{"schema":{"$ref":"#/components/schemas/Param"}}]` +
		`}}},"components":{"schemas":{` +
		`"Wrapper":{"properties":{"items":{"type":"array","items":{"$ref":"#/components/schemas/Item"}}}}` +
		`}}}`
	if diff := cmp.Diff(want, mustJSON(t, doc)); diff != "" {
		t.Fatalf("normalized document mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeRefs_DoesNotDescendIntoReferenceNodes(t *testing.T) {
	t.Parallel()
	doc := mustValue(t, `{"schema":{"$ref":"#/$defs/A","$defs":{"B":{"$ref":"#/$defs/C"}}}}`)
	if err := NormalizeRefs(doc); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := `{"schema":{"$ref":"#/components/schemas/A","$defs":{"B":{"$ref":"#/$defs/C"}}}}`
	if diff := cmp.Diff(want, mustJSON(t, doc)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeRefs_Idempotent(t *testing.T) {
	t.Parallel()
	doc := mustValue(t, `{"a":[{"$ref":"#/$defs/X"},{"b":{"$ref":"#/components/schemas/Y"}}],"c":{"$ref":"Z"}}`)
	if err := NormalizeRefs(doc); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	once := mustJSON(t, doc)
	if err := NormalizeRefs(doc); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if twice := mustJSON(t, doc); twice != once {
		t.Fatalf("second pass changed output:\n once %s\ntwice %s", once, twice)
	}
}

func TestNormalizeRefs_InvalidReference(t *testing.T) {
	t.Parallel()
	for _, ref := range []string{"", "#/$defs/", "/"} {
		doc := mustValue(t, `{"x":{"y":{"$ref":"`+ref+`"}}}`)
		err := NormalizeRefs(doc)
		var ie *InvalidReferenceError
		if !errors.As(err, &ie) {
			t.Fatalf("ref %q: expected InvalidReferenceError, got %v", ref, err)
		}
		if ie.Ref != ref || ie.JSONPointer != "#/x/y" {
			t.Fatalf("ref %q: unexpected error fields %+v", ref, ie)
		}
		if !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("expected errors.Is ErrInvalidReference")
		}
	}
}

func TestNormalizeRefs_IgnoresNonStringRef(t *testing.T) {
	t.Parallel()
	doc := mustValue(t, `{"properties":{"$ref":{"type":"string"},"x":{"$ref":"#/$defs/X"}}}`)
	if err := NormalizeRefs(doc); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := `{"properties":{"$ref":{"type":"string"},"x":{"$ref":"#/components/schemas/X"}}}`
	if diff := cmp.Diff(want, mustJSON(t, doc)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
