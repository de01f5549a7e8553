package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind identifies the shape held by a Value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindBytes
	KindMap
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a JSON-like tree: a primitive, a mapping of Values, or a sequence
// of Values. Every platform payload is converted into a Value so that payload
// inspection is a typed walk rather than ad-hoc type switches.
//
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	raw  []byte
	m    map[string]Value
	list []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// NumberValue wraps a number.
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// BytesValue wraps raw bytes.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// MapValue wraps a mapping.
func MapValue(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// ListValue wraps a sequence.
func ListValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// FromAny converts a plain Go value (as produced by encoding/json or built by
// hand) into a Value. Unknown types are round-tripped through JSON.
//
//nolint:gocyclo // type switch over every JSON-compatible Go type
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Value:
		if t == nil {
			return Null()
		}
		return *t
	case bool:
		return BoolValue(t)
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case int32:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case uint:
		return NumberValue(float64(t))
	case uint32:
		return NumberValue(float64(t))
	case uint64:
		return NumberValue(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return StringValue(t.String())
		}
		return NumberValue(f)
	case string:
		return StringValue(t)
	case []byte:
		return BytesValue(t)
	case json.RawMessage:
		parsed, err := ParseJSON(t)
		if err != nil {
			return BytesValue(t)
		}
		return parsed
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return MapValue(m)
	case map[string]string:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = StringValue(item)
		}
		return MapValue(m)
	case map[string]Value:
		return MapValue(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return ListValue(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = StringValue(item)
		}
		return ListValue(items...)
	case []map[string]any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return ListValue(items...)
	case []Value:
		return ListValue(t...)
	case Arguments:
		return FromAny(t.Map())
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Null()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return StringValue(fmt.Sprint(v))
	}
	parsed, err := ParseJSON(data)
	if err != nil {
		return StringValue(string(data))
	}
	return parsed
}

// ParseJSON decodes a JSON document into a Value.
func ParseJSON(data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Null(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return Null(), fmt.Errorf("decode json: %w", err)
	}
	return FromAny(out), nil
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull returns true for the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsContainer returns true for maps and lists.
func (v Value) IsContainer() bool { return v.kind == KindMap || v.kind == KindList }

// AsString returns the string held by a string value.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsBytes returns the bytes held by a bytes value.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.raw, true
}

// AsBool returns the bool held by a bool value.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the number held by a number value.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Get returns a child of a map value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null(), false
	}
	child, ok := v.m[key]
	return child, ok
}

// Index returns an element of a list value.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Null(), false
	}
	return v.list[i], true
}

// Keys returns the sorted keys of a map value.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Items returns the elements of a list value.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Len returns the number of children of a container, or 0.
func (v Value) Len() int {
	switch v.kind {
	case KindMap:
		return len(v.m)
	case KindList:
		return len(v.list)
	default:
		return 0
	}
}

// Text renders a primitive as text. Containers and null render as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBytes:
		return string(v.raw)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Interface converts the value back to plain Go types.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBytes:
		return v.raw
	case KindMap:
		m := make(map[string]any, len(v.m))
		for k, child := range v.m {
			m[k] = child.Interface()
		}
		return m
	case KindList:
		items := make([]any, len(v.list))
		for i, child := range v.list {
			items[i] = child.Interface()
		}
		return items
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler. Bytes are encoded as base64 strings.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Excerpt renders the value as indented JSON truncated to at most maxLen
// bytes without splitting a rune.
func (v Value) Excerpt(maxLen int) string {
	data, err := json.MarshalIndent(v.Interface(), "", "  ")
	if err != nil {
		return fmt.Sprintf("<unprintable payload: %v>", err)
	}
	if maxLen > 0 && len(data) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		return string(data[:cut]) + "..."
	}
	return string(data)
}

// Path locates a node inside a Value. Map keys appear as-is; list positions
// appear as "[i]".
type Path []string

// String joins the path with dots.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Key returns the name of the field holding the node: the last map key on the
// path, reduced to its final dot-separated segment so flattened keys such as
// "file.path" report "path". Returns "" for the root and for list elements
// reached without a key.
func (p Path) Key() string {
	for i := len(p) - 1; i >= 0; i-- {
		seg := p[i]
		if strings.HasPrefix(seg, "[") {
			continue
		}
		if idx := strings.LastIndex(seg, "."); idx >= 0 {
			return seg[idx+1:]
		}
		return seg
	}
	return ""
}

// WalkFunc visits one node. Returning false stops the walk.
type WalkFunc func(path Path, v Value) bool

// Walk visits v and every descendant depth-first. Map children are visited in
// sorted key order so walks are deterministic. It returns false if fn stopped
// the walk.
func Walk(v Value, fn WalkFunc) bool {
	return walk(nil, v, fn)
}

func walk(path Path, v Value, fn WalkFunc) bool {
	if !fn(path, v) {
		return false
	}
	switch v.kind {
	case KindMap:
		for _, k := range v.Keys() {
			if !walk(appendPath(path, k), v.m[k], fn) {
				return false
			}
		}
	case KindList:
		for i, child := range v.list {
			if !walk(appendPath(path, "["+strconv.Itoa(i)+"]"), child, fn) {
				return false
			}
		}
	}
	return true
}

func appendPath(p Path, seg string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}
