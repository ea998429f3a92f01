package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ValueKind identifies which variant a Value holds
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindURL
	KindList
	KindObject
)

// String returns the kind name
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindURL:
		return "url"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is a remote field value. SharePoint returns the same logical column as
// a plain string, a {"Url": ...} object or a list depending on column type and
// projection, so accessors never panic and return the zero value on mismatch.
type Value struct {
	kind ValueKind
	str  string // string, number text, or url
	b    bool
	list []Value
	obj  map[string]Value
}

// StringValue creates a string Value
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// URLValue creates a URL-reference Value
func URLValue(u string) Value { return Value{kind: KindURL, str: u} }

// NumberValue creates a number Value from its textual form
func NumberValue(n string) Value { return Value{kind: KindNumber, str: n} }

// BoolValue creates a bool Value
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ListValue creates a list Value
func ListValue(items ...Value) Value { return Value{kind: KindList, list: items} }

// ValueFromAny converts a decoded JSON value into a Value
func ValueFromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case string:
		return StringValue(t)
	case json.Number:
		return NumberValue(t.String())
	case float64:
		return NumberValue(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return NumberValue(strconv.Itoa(t))
	case int64:
		return NumberValue(strconv.FormatInt(t, 10))
	case bool:
		return BoolValue(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, ValueFromAny(item))
		}
		return Value{kind: KindList, list: items}
	case map[string]any:
		for _, key := range []string{"Url", "url", "URL"} {
			if u, ok := t[key].(string); ok {
				return URLValue(u)
			}
		}
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			obj[k] = ValueFromAny(item)
		}
		return Value{kind: KindObject, obj: obj}
	default:
		return Value{}
	}
}

// UnmarshalJSON decodes any JSON value into the matching variant
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = ValueFromAny(raw)
	return nil
}

// Kind returns the variant held
func (v Value) Kind() ValueKind { return v.kind }

// IsEmpty reports whether the value carries no usable content
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString, KindURL, KindNumber:
		return strings.TrimSpace(v.str) == ""
	case KindList:
		return len(v.list) == 0
	case KindObject:
		return len(v.obj) == 0
	default:
		return false
	}
}

// AsString returns scalar content as text, or "" for URL, list, object and null.
func (v Value) AsString() string {
	switch v.kind {
	case KindString, KindNumber:
		return strings.TrimSpace(v.str)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// AsURL returns the referenced URL. Plain strings count when they are absolute
// http(s) URLs; lists yield their first URL.
func (v Value) AsURL() string {
	switch v.kind {
	case KindURL:
		return strings.TrimSpace(v.str)
	case KindString:
		s := strings.TrimSpace(v.str)
		lower := strings.ToLower(s)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return s
		}
	case KindList:
		for _, item := range v.list {
			if u := item.AsURL(); u != "" {
				return u
			}
		}
	}
	return ""
}

// AsBool interprets bools, numbers and yes/no style strings
func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindString, KindNumber:
		switch strings.ToLower(strings.TrimSpace(v.str)) {
		case "1", "true", "yes", "y":
			return true, true
		case "0", "false", "no", "n":
			return false, true
		}
	}
	return false, false
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// AsDate normalizes date-like strings to YYYY-MM-DD, or "" when unparseable.
func (v Value) AsDate() string {
	s := v.AsString()
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// List returns list items, or nil for other kinds
func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Field returns a member of an object value
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[name]
	return f, ok
}
