package model

// DeriveOp names how a derived variable is computed from an answer
type DeriveOp string

const (
	// DeriveAnswer binds the raw answer; Default replaces a falsy answer when set
	DeriveAnswer DeriveOp = "answer"
	// DeriveCount binds the length of a list answer, 0 otherwise
	DeriveCount DeriveOp = "count"
	// DeriveContains binds true when a list answer holds any of Values
	DeriveContains DeriveOp = "contains"
	// DeriveField binds Field of an object answer, Default when missing or falsy
	DeriveField DeriveOp = "field"
	// DeriveMerge copies every key of an object answer into the bag
	DeriveMerge DeriveOp = "merge"
	// DeriveConstant binds Default unconditionally
	DeriveConstant DeriveOp = "constant"
)

// DerivedVariable is a declarative side effect applied after a block is answered
type DerivedVariable struct {
	Set     string   `json:"set,omitempty"`
	Op      DeriveOp `json:"op"`
	Values  []any    `json:"values,omitempty"`
	Field   string   `json:"field,omitempty"`
	Default any      `json:"default,omitempty"`

	// OnlyFor restricts the rule to answers of this kind ("list", "object", ...)
	OnlyFor AnswerKind `json:"onlyFor,omitempty"`
}
