package tree

import "fmt"

// MalformedNodeError reports structurally invalid input: a node whose
// type is neither "group" nor "rule", or one missing a required key.
type MalformedNodeError struct {
	NodeID string // empty when the id itself is missing
	Key    string // offending property, if one can be named
	Reason string
}

// Error implements the error interface.
func (e *MalformedNodeError) Error() string {
	msg := "malformed node"
	if e.NodeID != "" {
		msg += fmt.Sprintf(" %q", e.NodeID)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q)", e.Key)
	}
	return msg + ": " + e.Reason
}

func errMalformed(nodeID, key, format string, args ...any) error {
	return &MalformedNodeError{
		NodeID: nodeID,
		Key:    key,
		Reason: fmt.Sprintf(format, args...),
	}
}

// Deprecation records use of a legacy wire spelling that still decodes
// but should be migrated. Decoding never fails on one.
type Deprecation struct {
	NodeID  string
	Key     string
	Message string
}

// String returns a human-readable representation of the deprecation.
func (d Deprecation) String() string {
	return fmt.Sprintf("node %q: %s", d.NodeID, d.Message)
}
