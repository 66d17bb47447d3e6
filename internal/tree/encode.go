package tree

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Encode serializes a tree back to the wire format. Output is
// deterministic: struct field order is fixed and function arguments
// keep their recorded order, so identical trees encode to identical
// bytes.
func Encode(n Node) ([]byte, error) {
	enc, err := encodeNode(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

// EncodeDocument serializes a batch document as {"rules": [...]}.
func EncodeDocument(doc *Document) ([]byte, error) {
	encoded := make([]json.RawMessage, 0, len(doc.Trees))
	for i, t := range doc.Trees {
		data, err := Encode(t)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		encoded = append(encoded, data)
	}
	return json.Marshal(struct {
		Rules []json.RawMessage `json:"rules"`
	}{Rules: encoded})
}

// Fingerprint returns the hex SHA-256 of the tree's canonical
// encoding. Equal trees share a fingerprint, which keys the compile
// cache and witnesses determinism in tests.
func Fingerprint(n Node) (string, error) {
	data, err := Encode(n)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// =============================================================================
// Encoder Shapes
// =============================================================================

type encNode struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Children   []encNode       `json:"children1,omitempty"`
}

type encGroupProps struct {
	Conjunction string `json:"conjunction"`
	Not         bool   `json:"not"`
}

type encRuleProps struct {
	Field     json.RawMessage   `json:"field"`
	FieldSrc  string            `json:"fieldSrc,omitempty"`
	Operator  string            `json:"operator"`
	Value     []json.RawMessage `json:"value,omitempty"`
	ValueSrc  []string          `json:"valueSrc,omitempty"`
	ValueType []string          `json:"valueType,omitempty"`
	Not       bool              `json:"not,omitempty"`
}

func encodeNode(n Node) (encNode, error) {
	switch node := n.(type) {
	case *GroupNode:
		props, err := json.Marshal(encGroupProps{
			Conjunction: node.Conjunction.String(),
			Not:         node.Negated,
		})
		if err != nil {
			return encNode{}, err
		}
		enc := encNode{ID: node.ID(), Type: "group", Properties: props}
		for _, child := range node.Children {
			encChild, err := encodeNode(child)
			if err != nil {
				return encNode{}, err
			}
			enc.Children = append(enc.Children, encChild)
		}
		return enc, nil

	case *RuleNode:
		props, err := encodeRuleProps(node)
		if err != nil {
			return encNode{}, err
		}
		return encNode{ID: node.ID(), Type: "rule", Properties: props}, nil

	default:
		return encNode{}, fmt.Errorf("cannot encode node of kind %v", n.Kind())
	}
}

func encodeRuleProps(r *RuleNode) (json.RawMessage, error) {
	field, fieldSrc, err := encodeFieldRef(r.Field)
	if err != nil {
		return nil, err
	}

	props := encRuleProps{
		Field:    field,
		FieldSrc: fieldSrc,
		Operator: r.Operator,
		Not:      r.Negated,
	}

	for _, slot := range valueSlotsOf(r.Value) {
		raw, src, tag, err := encodeSlot(slot)
		if err != nil {
			return nil, err
		}
		props.Value = append(props.Value, raw)
		props.ValueSrc = append(props.ValueSrc, src)
		props.ValueType = append(props.ValueType, tag)
	}

	return json.Marshal(props)
}

// valueSlotsOf splits a rule value back into wire slots: a ListValue
// spreads across slots, anything else occupies one.
func valueSlotsOf(v Value) []Value {
	switch val := v.(type) {
	case nil:
		return nil
	case *ListValue:
		return val.Items
	default:
		return []Value{v}
	}
}

func encodeFieldRef(f FieldRef) (json.RawMessage, string, error) {
	switch ref := f.(type) {
	case nil:
		return nil, "", fmt.Errorf("cannot encode rule without a field")
	case *PlainField:
		raw, err := json.Marshal(ref.Name)
		return raw, "field", err
	case *FuncCall:
		raw, err := encodeFunc(ref)
		return raw, "func", err
	case *FieldReference:
		raw, err := json.Marshal(struct {
			Value     string `json:"value"`
			ValueSrc  string `json:"valueSrc"`
			ValueType string `json:"valueType,omitempty"`
		}{Value: ref.Name, ValueSrc: "field", ValueType: ref.Type.String()})
		return raw, "field", err
	default:
		return nil, "", fmt.Errorf("cannot encode field reference %T", f)
	}
}

// encodeFunc writes {"func": ..., "args": {...}} by hand so argument
// order survives; a map marshal would sort the keys.
func encodeFunc(f *FuncCall) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"func":`)
	name, err := json.Marshal(f.Func)
	if err != nil {
		return nil, err
	}
	buf.Write(name)
	buf.WriteString(`,"args":{`)
	for i, arg := range f.Args {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(arg.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		envelope, err := encodeArgEnvelope(arg.Value)
		if err != nil {
			return nil, fmt.Errorf("arg %q: %w", arg.Name, err)
		}
		buf.Write(envelope)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func encodeArgEnvelope(v Value) (json.RawMessage, error) {
	raw, src, tag, err := encodeSlot(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Value     json.RawMessage `json:"value"`
		ValueSrc  string          `json:"valueSrc"`
		ValueType string          `json:"valueType,omitempty"`
	}{Value: raw, ValueSrc: src, ValueType: tag})
}

// encodeSlot renders one value slot plus its wire source and type tag.
func encodeSlot(v Value) (json.RawMessage, string, string, error) {
	switch val := v.(type) {
	case nil:
		return json.RawMessage("null"), "value", "", nil
	case *StringValue:
		raw, err := json.Marshal(val.Val)
		tag := val.Type
		if tag == TypeUnspecified {
			tag = TypeText
		}
		return raw, "value", tag.String(), err
	case *NumberValue:
		raw, err := json.Marshal(val.Val)
		return raw, "value", TypeNumber.String(), err
	case *BoolValue:
		raw, err := json.Marshal(val.Val)
		return raw, "value", TypeBoolean.String(), err
	case *FieldReference:
		raw, err := json.Marshal(val.Name)
		return raw, "field", val.Type.String(), err
	case *FuncCall:
		raw, err := encodeFunc(val)
		return raw, "func", "", err
	case *ListValue:
		elems := make([]json.RawMessage, 0, len(val.Items))
		tag := ""
		for _, item := range val.Items {
			raw, _, itemTag, err := encodeSlot(item)
			if err != nil {
				return nil, "", "", err
			}
			elems = append(elems, raw)
			if tag == "" {
				tag = itemTag
			}
		}
		raw, err := json.Marshal(elems)
		return raw, "value", tag, err
	default:
		return nil, "", "", fmt.Errorf("cannot encode value %T", v)
	}
}
