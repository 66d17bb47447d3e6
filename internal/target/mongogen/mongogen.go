// Package mongogen renders rule trees to MongoDB filter documents.
// The compiled expression is a bson.M match document: conjunctions
// become $and/$or arrays, group negation wraps in $nor, and rule
// operators map onto $eq, $ne, the bound comparisons, $regex and
// $exists. Functions and field-to-field comparisons need the
// aggregation pipeline, which filter documents cannot express, so the
// base registry binds no functions and rejects field references in
// value position.
package mongogen

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ruletree/ruletree/internal/tree"
)

// =============================================================================
// Operand envelopes
// =============================================================================

// The compiler renders fields and literals bottom-up, so both reach an
// operator render already wrapped in bson.M. Envelopes keyed off names
// no query operator uses carry the raw pieces until the operator
// render unwraps them; a finished document never contains one.
const (
	envelopeField = "$field$"
	envelopeValue = "$value$"
)

func fieldEnvelope(name string) bson.M { return bson.M{envelopeField: name} }

func valueEnvelope(v any) bson.M { return bson.M{envelopeValue: v} }

// fieldName unwraps a rendered field expression back to its path.
func fieldName(expr bson.M) (string, error) {
	name, ok := expr[envelopeField].(string)
	if !ok {
		return "", fmt.Errorf("operand is not a field path")
	}
	return name, nil
}

// rawValue unwraps a rendered literal back to its Go value. A field
// reference arriving here means the tree compares two fields, which a
// filter document cannot say.
func rawValue(expr bson.M) (any, error) {
	if v, ok := expr[envelopeValue]; ok {
		return v, nil
	}
	if _, ok := expr[envelopeField]; ok {
		return nil, fmt.Errorf("field references cannot stand in value position in a filter document")
	}
	return nil, fmt.Errorf("operand is not a literal value")
}

// goValue converts a tree literal to the Go value the driver encodes.
// Date, time and datetime strings stay strings; their wire format
// orders lexicographically, so range comparisons hold without
// converting to driver time types.
func goValue(v tree.Value) (any, error) {
	switch val := v.(type) {
	case *tree.StringValue:
		return val.Val, nil
	case *tree.NumberValue:
		return val.Val, nil
	case *tree.BoolValue:
		return val.Val, nil
	default:
		return nil, fmt.Errorf("cannot encode %T as a filter literal", v)
	}
}

// =============================================================================
// Pattern helpers
// =============================================================================

var regexSpecial = regexp.MustCompile(`([\\.*+?^${}()|[\]])`)

// EscapeRegexPattern escapes regex metacharacters so a pattern matches
// its text literally.
func EscapeRegexPattern(pattern string) string {
	return regexSpecial.ReplaceAllString(pattern, `\$1`)
}

// ContainsRegex matches strings containing the substring. Matching is
// case-sensitive, in line with the SQL target's LIKE rendering.
func ContainsRegex(substring string) primitive.Regex {
	return primitive.Regex{Pattern: EscapeRegexPattern(substring)}
}

// StartsWithRegex matches strings beginning with the prefix.
func StartsWithRegex(prefix string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + EscapeRegexPattern(prefix)}
}

// EndsWithRegex matches strings ending with the suffix.
func EndsWithRegex(suffix string) primitive.Regex {
	return primitive.Regex{Pattern: EscapeRegexPattern(suffix) + "$"}
}
