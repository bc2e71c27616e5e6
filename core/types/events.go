package types

// Event is the wire-level representation of a state change. Attribute values
// are strings so the audit log stays stable across encoders.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
