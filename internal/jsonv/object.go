package jsonv

// Obj is a JSON object that remembers member insertion order.
type Obj struct {
	keys []string
	vals map[string]Value
}

// NewObject returns an empty object.
func NewObject() *Obj {
	return &Obj{vals: make(map[string]Value)}
}

// Len reports the number of members.
func (o *Obj) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns a copy of the member names in insertion order.
func (o *Obj) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Has reports whether key is a member.
func (o *Obj) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.vals[key]
	return ok
}

// Get returns the member stored under key.
func (o *Obj) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Value returns the member under key, or Undefined.
func (o *Obj) Value(key string) Value {
	v, _ := o.Get(key)
	return v
}

// Object returns the member under key when it is an object.
func (o *Obj) Object(key string) *Obj {
	return o.Value(key).Obj()
}

// String returns the member under key when it is a string.
func (o *Obj) String(key string) (string, bool) {
	return o.Value(key).Str()
}

// Set stores v under key. Existing members keep their position; new ones are
// appended. Setting an Undefined value removes the member.
func (o *Obj) Set(key string, v Value) *Obj {
	if !v.IsDefined() {
		o.Delete(key)
		return o
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
	return o
}

// SetString is shorthand for Set(key, StringValue(s)) that skips empty strings.
func (o *Obj) SetString(key, s string) *Obj {
	if s == "" {
		return o
	}
	return o.Set(key, StringValue(s))
}

// Delete removes key. It is a no-op for missing keys.
func (o *Obj) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each member in order until fn returns false. The member
// list is snapshotted first, so fn may mutate o.
func (o *Obj) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, k := range o.Keys() {
		v, ok := o.vals[k]
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Clone returns a deep copy of o.
func (o *Obj) Clone() *Obj {
	if o == nil {
		return nil
	}
	out := &Obj{keys: make([]string, len(o.keys)), vals: make(map[string]Value, len(o.vals))}
	copy(out.keys, o.keys)
	for k, v := range o.vals {
		out.vals[k] = v.Clone()
	}
	return out
}

// Equal reports whether o and other hold structurally equal members,
// regardless of order.
func (o *Obj) Equal(other *Obj) bool {
	if o.Len() != other.Len() {
		return false
	}
	if o == nil || other == nil {
		return o.Len() == 0 && other.Len() == 0
	}
	for k, v := range o.vals {
		ov, ok := other.vals[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}
