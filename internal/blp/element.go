package blp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Element is one node of a provider message tree. A node is exactly one of:
// a scalar leaf, a set of named sub-elements, or a repeated sequence of
// unnamed entries (the gateway encodes these as JSON scalars, objects and
// arrays respectively).
type Element struct {
	name     string
	value    any // string, json.Number, bool or nil
	children []Element
	items    []Element
	isScalar bool
}

// Scalar builds a scalar leaf element.
func Scalar(name string, value any) Element {
	return Element{name: name, value: coerceScalar(value), isScalar: true}
}

// Object builds an element holding named sub-elements.
func Object(name string, children ...Element) Element {
	return Element{name: name, children: children}
}

// Array builds an element holding repeated entries. items stays non-nil even
// when empty so an empty array still renders as [].
func Array(name string, items ...Element) Element {
	if items == nil {
		items = []Element{}
	}
	return Element{name: name, items: items}
}

func coerceScalar(v any) any {
	switch t := v.(type) {
	case int:
		return json.Number(fmt.Sprintf("%d", t))
	case int64:
		return json.Number(fmt.Sprintf("%d", t))
	case float64:
		b, _ := json.Marshal(t)
		return json.Number(b)
	default:
		return v
	}
}

// Name returns the element name.
func (e Element) Name() string { return e.name }

// IsNull reports whether the element is a zero value (lookup miss).
func (e Element) IsNull() bool {
	return e.name == "" && e.value == nil && e.children == nil && e.items == nil && !e.isScalar
}

// HasElement reports whether a named sub-element exists.
func (e Element) HasElement(name string) bool {
	for _, c := range e.children {
		if c.name == name {
			return true
		}
	}
	return false
}

// Element returns the named sub-element, or a null element when absent.
func (e Element) Element(name string) (Element, bool) {
	for _, c := range e.children {
		if c.name == name {
			return c, true
		}
	}
	return Element{}, false
}

// Values returns the repeated entries of an array element.
func (e Element) Values() []Element { return e.items }

// NumValues counts the renderable values this element carries: one for a
// non-nil scalar, the entry count for an array, zero otherwise.
func (e Element) NumValues() int {
	if e.isScalar {
		if e.value == nil {
			return 0
		}
		return 1
	}
	return len(e.items)
}

// Elements returns the named sub-elements in encounter order.
func (e Element) Elements() []Element { return e.children }

// Value returns the scalar value with the type the provider assigned
// (string, json.Number, bool or nil).
func (e Element) Value() any { return e.value }

// String returns the named sub-element's scalar rendered as a string, or ""
// when the sub-element is absent or not renderable.
func (e Element) String(name string) string {
	c, ok := e.Element(name)
	if !ok {
		return ""
	}
	s, err := c.AsString()
	if err != nil {
		return ""
	}
	return s
}

// AsString renders the element's value as a display string. Non-scalar
// elements and null scalars do not render.
func (e Element) AsString() (string, error) {
	if !e.isScalar {
		return "", fmt.Errorf("element %q is not a scalar", e.name)
	}
	switch v := e.value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("element %q has no renderable value", e.name)
	}
}

// MarshalJSON renders the element back to its wire form.
func (e Element) MarshalJSON() ([]byte, error) {
	switch {
	case e.isScalar:
		return json.Marshal(e.value)
	case e.items != nil:
		parts := make([]json.RawMessage, 0, len(e.items))
		for _, it := range e.items {
			b, err := it.MarshalJSON()
			if err != nil {
				return nil, err
			}
			parts = append(parts, b)
		}
		return json.Marshal(parts)
	default:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, c := range e.children {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(c.name)
			buf.Write(key)
			buf.WriteByte(':')
			b, err := c.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
}

// DecodeElement parses a JSON document into an element tree, preserving the
// key order of objects. encoding/json maps would lose that order, so the
// tree is built from the token stream directly.
func DecodeElement(name string, data []byte) (Element, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	el, err := decodeValue(name, dec)
	if err != nil {
		return Element{}, fmt.Errorf("decode element %q: %w", name, err)
	}
	return el, nil
}

func decodeValue(name string, dec *json.Decoder) (Element, error) {
	tok, err := dec.Token()
	if err != nil {
		return Element{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(name, dec)
		case '[':
			return decodeArray(name, dec)
		default:
			return Element{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return Element{name: name, value: t, isScalar: true}, nil
	case json.Number:
		return Element{name: name, value: t, isScalar: true}, nil
	case bool:
		return Element{name: name, value: t, isScalar: true}, nil
	case nil:
		return Element{name: name, isScalar: true}, nil
	default:
		return Element{}, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeObject(name string, dec *json.Decoder) (Element, error) {
	el := Element{name: name, children: []Element{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Element{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Element{}, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		child, err := decodeValue(key, dec)
		if err != nil {
			return Element{}, err
		}
		el.children = append(el.children, child)
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return Element{}, err
	}
	return el, nil
}

func decodeArray(name string, dec *json.Decoder) (Element, error) {
	el := Element{name: name, items: []Element{}}
	for dec.More() {
		item, err := decodeValue("", dec)
		if err != nil {
			return Element{}, err
		}
		el.items = append(el.items, item)
	}
	// consume closing ']'
	if _, err := dec.Token(); err != nil {
		return Element{}, err
	}
	return el, nil
}
