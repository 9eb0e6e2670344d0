package jsonv

import (
	"strconv"
	"strings"
)

// Visitor is called for every object node reached by Walk. ptr is the JSON
// Pointer of the node relative to the walk root. Returning skip=true stops
// Walk from descending into the node's members; a non-nil error aborts the
// whole walk.
type Visitor func(ptr string, obj *Obj) (skip bool, err error)

// Walk visits every object in v depth-first, in member order. Arrays are
// traversed element-wise but are not themselves passed to fn.
//
// fn may mutate the object it is given. Members added to that object after
// fn returns are walked; members removed are not.
func Walk(v Value, fn Visitor) error {
	return walk(v, "", fn)
}

func walk(v Value, ptr string, fn Visitor) error {
	switch v.kind {
	case Array:
		for i, item := range v.arr {
			if err := walk(item, ptr+"/"+strconv.Itoa(i), fn); err != nil {
				return err
			}
		}
	case Object:
		skip, err := fn(ptr, v.obj)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		var walkErr error
		v.obj.Range(func(key string, member Value) bool {
			walkErr = walk(member, ptr+"/"+EscapePointer(key), fn)
			return walkErr == nil
		})
		return walkErr
	}
	return nil
}

// EscapePointer escapes a single JSON Pointer reference token (RFC 6901).
func EscapePointer(token string) string {
	if !strings.ContainsAny(token, "~/") {
		return token
	}
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

