package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is the result of decoding one input payload: a single tree
// or a batch of them, plus any deprecations met along the way.
type Document struct {
	Trees        []Node
	Deprecations []Deprecation
}

// Decode parses a wire document: either a single tree object or a
// batch of the form {"rules": [tree, ...]}.
func Decode(data []byte) (*Document, error) {
	var probe struct {
		Rules []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errMalformed("", "", "invalid JSON: %v", err)
	}

	d := &decoder{}
	doc := &Document{}
	if probe.Rules != nil {
		for i, raw := range probe.Rules {
			node, err := d.node(raw)
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", i, err)
			}
			doc.Trees = append(doc.Trees, node)
		}
	} else {
		node, err := d.node(data)
		if err != nil {
			return nil, err
		}
		doc.Trees = []Node{node}
	}
	doc.Deprecations = d.deprecations
	return doc, nil
}

// DecodeTree parses a single tree object. Batch documents are
// rejected; use Decode for those.
func DecodeTree(data []byte) (Node, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if len(doc.Trees) != 1 {
		return nil, errMalformed("", "rules", "expected a single tree, got a batch of %d", len(doc.Trees))
	}
	return doc.Trees[0], nil
}

// =============================================================================
// Wire Shapes
// =============================================================================

type wireNode struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Properties json.RawMessage   `json:"properties"`
	Children   []json.RawMessage `json:"children1"`
}

type wireGroupProps struct {
	Conjunction string `json:"conjunction"`
	Not         bool   `json:"not"`
}

type wireRuleProps struct {
	Field     json.RawMessage `json:"field"`
	FieldSrc  string          `json:"fieldSrc"`
	FiledSrc  string          `json:"filedSrc"` // legacy misspelling, decoded with a deprecation
	Operator  string          `json:"operator"`
	Value     json.RawMessage `json:"value"`
	ValueSrc  json.RawMessage `json:"valueSrc"`
	ValueType json.RawMessage `json:"valueType"`
	Not       bool            `json:"not"`
}

type wireFieldObject struct {
	Func      string          `json:"func"`
	Args      json.RawMessage `json:"args"`
	Value     json.RawMessage `json:"value"`
	ValueSrc  string          `json:"valueSrc"`
	ValueType string          `json:"valueType"`
}

// =============================================================================
// Decoder
// =============================================================================

type decoder struct {
	deprecations []Deprecation
}

func (d *decoder) node(raw json.RawMessage) (Node, error) {
	var wn wireNode
	if err := json.Unmarshal(raw, &wn); err != nil {
		return nil, errMalformed("", "", "invalid node: %v", err)
	}
	if wn.ID == "" {
		return nil, errMalformed("", "id", "missing node id")
	}
	switch wn.Type {
	case "group":
		return d.group(wn)
	case "rule":
		return d.rule(wn)
	case "":
		return nil, errMalformed(wn.ID, "type", "missing node type")
	default:
		return nil, errMalformed(wn.ID, "type", "unknown node type %q", wn.Type)
	}
}

func (d *decoder) group(wn wireNode) (Node, error) {
	props := wireGroupProps{}
	if len(wn.Properties) > 0 {
		if err := json.Unmarshal(wn.Properties, &props); err != nil {
			return nil, errMalformed(wn.ID, "properties", "invalid group properties: %v", err)
		}
	}
	conj, err := ParseConjunction(props.Conjunction)
	if err != nil {
		return nil, errMalformed(wn.ID, "conjunction", "%v", err)
	}

	group := NewGroupWithID(wn.ID, conj)
	group.Negated = props.Not
	for i, rawChild := range wn.Children {
		child, err := d.node(rawChild)
		if err != nil {
			return nil, fmt.Errorf("children1[%d]: %w", i, err)
		}
		group.Children = append(group.Children, child)
	}
	return group, nil
}

func (d *decoder) rule(wn wireNode) (Node, error) {
	if len(wn.Properties) == 0 {
		return nil, errMalformed(wn.ID, "properties", "missing rule properties")
	}
	var props wireRuleProps
	if err := json.Unmarshal(wn.Properties, &props); err != nil {
		return nil, errMalformed(wn.ID, "properties", "invalid rule properties: %v", err)
	}
	if props.Operator == "" {
		return nil, errMalformed(wn.ID, "operator", "missing operator")
	}
	if len(props.Field) == 0 || bytes.Equal(props.Field, []byte("null")) {
		return nil, errMalformed(wn.ID, "field", "missing field")
	}

	fieldSrc := props.FieldSrc
	if fieldSrc == "" && props.FiledSrc != "" {
		fieldSrc = props.FiledSrc
		d.deprecations = append(d.deprecations, Deprecation{
			NodeID:  wn.ID,
			Key:     "filedSrc",
			Message: `property "filedSrc" is a legacy misspelling, use "fieldSrc"`,
		})
	}

	field, err := d.fieldRef(wn.ID, props.Field, fieldSrc)
	if err != nil {
		return nil, err
	}

	sources, err := d.sourceSlots(wn.ID, props.ValueSrc)
	if err != nil {
		return nil, err
	}
	tags, err := d.typeSlots(wn.ID, props.ValueType)
	if err != nil {
		return nil, err
	}

	value, err := d.valueSlots(wn.ID, props.Value, sources, tags)
	if err != nil {
		return nil, err
	}

	rule := NewRuleWithID(wn.ID, field, props.Operator, value)
	rule.Negated = props.Not
	if len(tags) > 0 {
		rule.ValueType = tags[0]
	}
	if len(sources) > 0 {
		rule.ValueSrc = sources[0]
	}
	return rule, nil
}

// fieldRef decodes the polymorphic field position: a plain name, a
// function call object, or a field-reference object.
func (d *decoder) fieldRef(nodeID string, raw json.RawMessage, fieldSrc string) (FieldRef, error) {
	if raw[0] == '"' {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, errMalformed(nodeID, "field", "invalid field name: %v", err)
		}
		if fieldSrc == "func" {
			return nil, errMalformed(nodeID, "fieldSrc", "fieldSrc is %q but field is a plain name", fieldSrc)
		}
		return &PlainField{Name: name}, nil
	}

	var obj wireFieldObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errMalformed(nodeID, "field", "invalid field object: %v", err)
	}
	switch {
	case obj.Func != "":
		args, err := d.funcArgs(nodeID, obj.Args)
		if err != nil {
			return nil, err
		}
		return &FuncCall{Func: obj.Func, Args: args}, nil
	case len(obj.Value) > 0:
		var name string
		if err := json.Unmarshal(obj.Value, &name); err != nil {
			return nil, errMalformed(nodeID, "field", "field reference must name a field: %v", err)
		}
		tag, err := ParseTypeTag(obj.ValueType)
		if err != nil {
			return nil, errMalformed(nodeID, "field", "%v", err)
		}
		return &FieldReference{Name: name, Type: tag}, nil
	default:
		return nil, errMalformed(nodeID, "field", "field object needs a func or value key")
	}
}

// funcArgs decodes a function's args object preserving document order,
// which a plain map unmarshal would scramble.
func (d *decoder) funcArgs(nodeID string, raw json.RawMessage) ([]FuncArg, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, errMalformed(nodeID, "args", "invalid args: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errMalformed(nodeID, "args", "args must be an object")
	}

	var args []FuncArg
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errMalformed(nodeID, "args", "invalid args: %v", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errMalformed(nodeID, "args", "invalid args key %v", keyTok)
		}
		var argRaw json.RawMessage
		if err := dec.Decode(&argRaw); err != nil {
			return nil, errMalformed(nodeID, "args", "invalid arg %q: %v", key, err)
		}
		val, err := d.argValue(nodeID, argRaw)
		if err != nil {
			return nil, fmt.Errorf("arg %q: %w", key, err)
		}
		args = append(args, FuncArg{Name: key, Value: val})
	}
	return args, nil
}

// argValue decodes one function argument: an envelope object with
// value/valueSrc/valueType, a nested function call, or a bare literal.
func (d *decoder) argValue(nodeID string, raw json.RawMessage) (Value, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '{' {
		var obj wireFieldObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, errMalformed(nodeID, "args", "invalid arg: %v", err)
		}
		if obj.Func != "" {
			args, err := d.funcArgs(nodeID, obj.Args)
			if err != nil {
				return nil, err
			}
			return &FuncCall{Func: obj.Func, Args: args}, nil
		}
		src, err := ParseValueSource(obj.ValueSrc)
		if err != nil {
			return nil, errMalformed(nodeID, "args", "%v", err)
		}
		tag, err := ParseTypeTag(obj.ValueType)
		if err != nil {
			return nil, errMalformed(nodeID, "args", "%v", err)
		}
		return d.slot(nodeID, obj.Value, src, tag)
	}
	return d.slot(nodeID, raw, SourceValue, TypeUnspecified)
}

// =============================================================================
// Value Slots
// =============================================================================

// sourceSlots parses valueSrc, which arrives as a scalar or a per-slot
// array depending on the operator's cardinality.
func (d *decoder) sourceSlots(nodeID string, raw json.RawMessage) ([]ValueSource, error) {
	strs, err := stringSlots(nodeID, "valueSrc", raw)
	if err != nil {
		return nil, err
	}
	sources := make([]ValueSource, len(strs))
	for i, s := range strs {
		src, err := ParseValueSource(s)
		if err != nil {
			return nil, errMalformed(nodeID, "valueSrc", "%v", err)
		}
		sources[i] = src
	}
	return sources, nil
}

// typeSlots parses valueType in the same scalar-or-array shape.
func (d *decoder) typeSlots(nodeID string, raw json.RawMessage) ([]TypeTag, error) {
	strs, err := stringSlots(nodeID, "valueType", raw)
	if err != nil {
		return nil, err
	}
	tags := make([]TypeTag, len(strs))
	for i, s := range strs {
		tag, err := ParseTypeTag(s)
		if err != nil {
			return nil, errMalformed(nodeID, "valueType", "%v", err)
		}
		tags[i] = tag
	}
	return tags, nil
}

func stringSlots(nodeID, key string, raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var strs []string
		if err := json.Unmarshal(raw, &strs); err != nil {
			return nil, errMalformed(nodeID, key, "invalid %s array: %v", key, err)
		}
		return strs, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errMalformed(nodeID, key, "invalid %s: %v", key, err)
	}
	return []string{s}, nil
}

// valueSlots normalizes the scalar-or-array value property into a
// single Value: nil for none, the lone slot for one, a ListValue for
// two or more.
func (d *decoder) valueSlots(nodeID string, raw json.RawMessage, sources []ValueSource, tags []TypeTag) (Value, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var slots []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &slots); err != nil {
			return nil, errMalformed(nodeID, "value", "invalid value array: %v", err)
		}
	} else {
		slots = []json.RawMessage{raw}
	}

	values := make([]Value, 0, len(slots))
	for i, rawSlot := range slots {
		src := SourceValue
		if i < len(sources) {
			src = sources[i]
		}
		tag := TypeUnspecified
		if i < len(tags) {
			tag = tags[i]
		}
		v, err := d.slot(nodeID, rawSlot, src, tag)
		if err != nil {
			return nil, err
		}
		if v != nil {
			values = append(values, v)
		}
	}

	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	default:
		return &ListValue{Items: values}, nil
	}
}

// slot decodes one value slot according to its declared source.
func (d *decoder) slot(nodeID string, raw json.RawMessage, src ValueSource, tag TypeTag) (Value, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch src {
	case SourceField:
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, errMalformed(nodeID, "value", "field-source value must name a field: %v", err)
		}
		return &FieldReference{Name: name, Type: tag}, nil

	case SourceFunc:
		var obj wireFieldObject
		if err := json.Unmarshal(raw, &obj); err != nil || obj.Func == "" {
			return nil, errMalformed(nodeID, "value", "func-source value must be a function call object")
		}
		args, err := d.funcArgs(nodeID, obj.Args)
		if err != nil {
			return nil, err
		}
		return &FuncCall{Func: obj.Func, Args: args}, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errMalformed(nodeID, "value", "invalid string value: %v", err)
		}
		return &StringValue{Val: s, Type: tag}, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, errMalformed(nodeID, "value", "invalid boolean value: %v", err)
		}
		return &BoolValue{Val: b}, nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, errMalformed(nodeID, "value", "invalid list value: %v", err)
		}
		items := make([]Value, 0, len(elems))
		for _, elem := range elems {
			item, err := d.slot(nodeID, elem, SourceValue, tag)
			if err != nil {
				return nil, err
			}
			if item != nil {
				items = append(items, item)
			}
		}
		return &ListValue{Items: items}, nil
	case '{':
		// Lenient path for hand-written documents that omit valueSrc.
		var obj wireFieldObject
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Func != "" {
			args, err := d.funcArgs(nodeID, obj.Args)
			if err != nil {
				return nil, err
			}
			return &FuncCall{Func: obj.Func, Args: args}, nil
		}
		return nil, errMalformed(nodeID, "value", "unexpected object value")
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, errMalformed(nodeID, "value", "invalid numeric value: %v", err)
		}
		return &NumberValue{Val: f}, nil
	}
}
