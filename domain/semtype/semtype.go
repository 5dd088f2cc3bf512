// Package semtype defines the semantic type vocabulary the Pattern &
// Statistical Inferrer assigns to a column (spec.md §3, §4.2).
package semtype

// Type is an enumerated semantic type string, independent of the column's
// physical Dtype.
type Type string

const (
	Email      Type = "email"
	Phone      Type = "phone"
	Identifier Type = "identifier"
	Currency   Type = "currency"
	Timestamp  Type = "timestamp"
	URL        Type = "url"
	Percentage Type = "percentage"
	Boolean    Type = "boolean"
	UUID       Type = "uuid"
	IPAddress  Type = "ip_address"
	PostalCode Type = "postal_code"
	SSN        Type = "ssn"
	CreditCard Type = "credit_card"
	Unknown    Type = "unknown"
)

// Alternative is a lower-ranked candidate semantic type considered during
// inference, carried alongside the winning Result for transparency.
type Alternative struct {
	Type       Type
	Confidence float64
}

// Result is the Inferrer's output (spec.md §4.2): the winning semantic
// type, its confidence, the local justification (distinct from
// system-level Evidence records), and ranked runners-up.
type Result struct {
	SemanticType Type
	Confidence   float64
	Evidence     []string
	Alternatives []Alternative
}
