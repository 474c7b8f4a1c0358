package schema

// Kind is the declared kind of a schema type. It is fixed at construction.
type Kind int

const (
	// KindProxy is a marshaller-binding placeholder with no schema contribution,
	// such as a built-in scalar or an externally defined type.
	KindProxy Kind = iota
	// KindMessage is a message (record-like) type.
	KindMessage
	// KindEnum is an enumerated type.
	KindEnum
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindProxy:
		return "proxy"
	case KindMessage:
		return "message"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// State tracks where a type is in its lifecycle:
// Constructed, then MembersScanned, then SchemaEmitted.
// Emitting straight from Constructed is allowed and produces an empty body.
type State int

const (
	StateConstructed State = iota
	StateMembersScanned
	StateSchemaEmitted
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateMembersScanned:
		return "members-scanned"
	case StateSchemaEmitted:
		return "schema-emitted"
	default:
		return "unknown"
	}
}
