package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Argument is one named argument of a ToolCall.
type Argument struct {
	Key   string
	Value any
}

// Arguments is an ordered list of named arguments.
// Order is preserved when encoded so requests are reproducible.
type Arguments []Argument

// Args builds Arguments from alternating key/value pairs.
// A trailing key without a value is ignored.
func Args(pairs ...any) Arguments {
	out := make(Arguments, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		out = append(out, Argument{Key: key, Value: pairs[i+1]})
	}
	return out
}

// With returns a copy with key set to value, replacing an existing key in place.
func (a Arguments) With(key string, value any) Arguments {
	out := make(Arguments, len(a), len(a)+1)
	copy(out, a)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Argument{Key: key, Value: value})
}

// Get returns the value stored under key.
func (a Arguments) Get(key string) (any, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return nil, false
}

// Keys returns the argument names in order.
func (a Arguments) Keys() []string {
	keys := make([]string, len(a))
	for i, arg := range a {
		keys[i] = arg.Key
	}
	return keys
}

// Map returns the arguments as an unordered map.
func (a Arguments) Map() map[string]any {
	m := make(map[string]any, len(a))
	for _, arg := range a {
		m[arg.Key] = arg.Value
	}
	return m
}

// MarshalJSON encodes the arguments as a JSON object in declaration order.
func (a Arguments) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, arg := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(arg.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(arg.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToolCall is a request to run a named operation against an integration.
type ToolCall struct {
	// Operation is the platform operation name (e.g. "GOOGLEDRIVE_DOWNLOAD_FILE").
	Operation string
	// Arguments are the operation arguments.
	Arguments Arguments
	// Integration is the integration the operation belongs to.
	Integration IntegrationID
	// UserID is the local user the call is made for.
	UserID string
}

// ToolResult is the outcome of a ToolCall.
// Payload is the normalised payload and is the only field downstream code
// should depend on. Raw is kept for diagnostics.
type ToolResult struct {
	Success  bool
	Payload  Value
	Raw      Value
	Strategy string
}

// envelopeKeys wrap the interesting part of a platform response.
var envelopeKeys = []string{"data", "result", "body", "response", "response_data", "output"}

// envelopeMeta are sibling keys that may sit beside an envelope key without
// making the map a record in its own right.
var envelopeMeta = map[string]bool{
	"successful":   true,
	"success":      true,
	"error":        true,
	"errors":       true,
	"status":       true,
	"status_code":  true,
	"message":      true,
	"log_id":       true,
	"logid":        true,
	"request_id":   true,
	"session_info": true,
}

// NormalizePayload strips envelopes from a raw payload and flattens it.
// A map is unwrapped while exactly one envelope key holds a map or list and
// every other key is envelope metadata. Records become flat maps whose
// nested maps are joined with dots; lists are normalised element-wise.
func NormalizePayload(raw Value) Value {
	return normalize(unwrapEnvelope(raw))
}

// EnvelopeStatus reports whether a raw platform envelope signals failure.
// ok is false when the envelope carries successful=false, success=false or a
// non-empty error; message is the platform's message verbatim.
func EnvelopeStatus(raw Value) (ok bool, message string) {
	if raw.Kind() != KindMap {
		return true, ""
	}

	failed := false
	for _, key := range []string{"successful", "success"} {
		if v, found := raw.Get(key); found {
			if b, isBool := v.AsBool(); isBool && !b {
				failed = true
			}
		}
	}

	if v, found := raw.Get("error"); found {
		if msg := errorText(v); msg != "" {
			return false, msg
		}
	}

	if failed {
		if v, found := raw.Get("message"); found && v.Text() != "" {
			return false, v.Text()
		}
		return false, "platform reported an unsuccessful call"
	}
	return true, ""
}

func errorText(v Value) string {
	switch v.Kind() {
	case KindString, KindBytes:
		return strings.TrimSpace(v.Text())
	case KindMap:
		if v.Len() == 0 {
			return ""
		}
		for _, key := range []string{"message", "error", "detail"} {
			if child, ok := v.Get(key); ok && child.Text() != "" {
				return child.Text()
			}
		}
		return v.Excerpt(0)
	case KindList:
		if v.Len() == 0 {
			return ""
		}
		return v.Excerpt(0)
	case KindBool:
		if b, _ := v.AsBool(); b {
			return "error"
		}
		return ""
	default:
		return ""
	}
}

func unwrapEnvelope(v Value) Value {
	for v.Kind() == KindMap {
		next, ok := envelopeChild(v)
		if !ok {
			return v
		}
		v = next
	}
	return v
}

func envelopeChild(v Value) (Value, bool) {
	var (
		child Value
		found int
	)
	for _, key := range envelopeKeys {
		c, ok := v.Get(key)
		if !ok || !c.IsContainer() {
			continue
		}
		child = c
		found++
	}
	if found != 1 {
		return Null(), false
	}
	for _, key := range v.Keys() {
		if isEnvelopeKey(key) {
			continue
		}
		if !envelopeMeta[strings.ToLower(key)] {
			return Null(), false
		}
	}
	return child, true
}

func isEnvelopeKey(key string) bool {
	for _, k := range envelopeKeys {
		if k == key {
			return true
		}
	}
	return false
}

func normalize(v Value) Value {
	switch v.Kind() {
	case KindMap:
		flat := make(map[string]Value, v.Len())
		flatten("", v, flat)
		return MapValue(flat)
	case KindList:
		items := make([]Value, 0, v.Len())
		for _, item := range v.Items() {
			items = append(items, normalize(unwrapEnvelope(item)))
		}
		return ListValue(items...)
	default:
		return v
	}
}

func flatten(prefix string, v Value, out map[string]Value) {
	for _, key := range v.Keys() {
		child, _ := v.Get(key)
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch child.Kind() {
		case KindMap:
			if child.Len() == 0 {
				out[name] = child
				continue
			}
			flatten(name, child, out)
		case KindList:
			out[name] = normalize(child)
		default:
			out[name] = child
		}
	}
}
