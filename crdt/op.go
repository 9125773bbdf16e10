package crdt

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// OpKind tags an operation as an insertion or a deletion.
type OpKind string

const (
	OpInsert OpKind = "insert"
	OpDelete OpKind = "delete"
)

// Operation is the unit of replication: a single insert or delete tied to
// an identifier, stamped with the originating site and that site's
// operation clock. Operations are immutable and may be delivered
// at-least-once in any order; replaying a full operation log into an
// empty document reconstructs identical state.
type Operation struct {
	Kind  OpKind     `json:"kind"`
	ID    Identifier `json:"identifier"`
	Value string     `json:"payload,omitempty"`
	Site  SiteID     `json:"site"`
	Clock uint64     `json:"clock"`
}

// ErrMalformedOperation is returned when a wire-decoded operation fails
// structural validation. Malformed operations are dropped at the decode
// boundary and never reach the document.
var ErrMalformedOperation = errors.New("malformed operation")

// Validate checks the operation's structure: a known kind, an identifier
// strictly inside the sentinel bounds, a positive clock, and for inserts a
// payload of exactly one rune.
func (op Operation) Validate() error {
	switch op.Kind {
	case OpInsert, OpDelete:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedOperation, op.Kind)
	}

	if len(op.ID.Levels) == 0 {
		return fmt.Errorf("%w: empty identifier", ErrMalformedOperation)
	}
	if op.ID.Compare(Begin) <= 0 || op.ID.Compare(End) >= 0 {
		return fmt.Errorf("%w: identifier outside document bounds", ErrMalformedOperation)
	}
	if op.Clock == 0 {
		return fmt.Errorf("%w: missing clock", ErrMalformedOperation)
	}

	if op.Kind == OpInsert {
		if r, size := utf8.DecodeRuneInString(op.Value); r == utf8.RuneError || size != len(op.Value) {
			return fmt.Errorf("%w: payload must be a single rune", ErrMalformedOperation)
		}
	}
	return nil
}

// Encode serializes the operation to its JSON wire form.
func (op Operation) Encode() ([]byte, error) {
	return json.Marshal(op)
}

// DecodeOperation parses and validates a wire-encoded operation.
func DecodeOperation(data []byte) (Operation, error) {
	var op Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return Operation{}, fmt.Errorf("%w: %v", ErrMalformedOperation, err)
	}
	if err := op.Validate(); err != nil {
		return Operation{}, err
	}
	return op, nil
}
