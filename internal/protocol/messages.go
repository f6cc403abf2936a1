// Package protocol defines the wire messages exchanged with editor
// clients. Inbound messages are decoded in two steps: the envelope gives
// the type, then the payload is decoded into the matching struct, so
// nothing downstream ever handles an unknown shape.
package protocol

import (
	"encoding/json"
	"fmt"

	"collabtext/internal/crdt"
)

// Message type tags.
const (
	TypeInsert   = "insert"
	TypeDelete   = "delete"
	TypeCursor   = "cursor"
	TypeSnapshot = "snapshot"
	TypeUserList = "user_list"
	TypeError    = "error"
)

// Envelope carries only the type tag; used for the first decode pass.
type Envelope struct {
	Type string `json:"type"`
}

// Inbound messages.

// Insert asks the server to place one character after the given anchor.
// After is null for the front of the document. ClientOpID is an opaque
// client-side correlation id echoed back in the broadcast.
type Insert struct {
	Char       string  `json:"char"`
	After      *string `json:"after"`
	ClientOpID string  `json:"client_op_id"`
}

// Delete asks the server to tombstone a server-assigned character id.
type Delete struct {
	ID string `json:"id"`
}

// Cursor reports the sender's cursor offset.
type Cursor struct {
	Position int `json:"position"`
}

// Inbound is the decoded form of one client message: exactly one of the
// payload fields is set, matching Type.
type Inbound struct {
	Type   string
	Insert *Insert
	Delete *Delete
	Cursor *Cursor
}

// ErrUnknownType is returned by Decode for a type outside the fixed set.
type ErrUnknownType struct {
	Type string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// Decode parses one raw client message into its typed form.
func Decode(raw []byte) (*Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	in := &Inbound{Type: env.Type}
	switch env.Type {
	case TypeInsert:
		in.Insert = &Insert{}
		if err := json.Unmarshal(raw, in.Insert); err != nil {
			return nil, fmt.Errorf("decoding insert: %w", err)
		}
	case TypeDelete:
		in.Delete = &Delete{}
		if err := json.Unmarshal(raw, in.Delete); err != nil {
			return nil, fmt.Errorf("decoding delete: %w", err)
		}
	case TypeCursor:
		in.Cursor = &Cursor{}
		if err := json.Unmarshal(raw, in.Cursor); err != nil {
			return nil, fmt.Errorf("decoding cursor: %w", err)
		}
	default:
		return nil, &ErrUnknownType{Type: env.Type}
	}
	return in, nil
}

// Outbound messages. All carry their own type tag so they can be handed
// straight to a JSON writer.

// InsertEvent is the broadcast form of an applied insert, including the
// server-assigned id and the authoring client.
type InsertEvent struct {
	Type       string  `json:"type"`
	ID         string  `json:"id"`
	Char       string  `json:"char"`
	After      *string `json:"after"`
	ClientOpID string  `json:"client_op_id"`
	Author     string  `json:"author"`
}

type DeleteEvent struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Author string `json:"author"`
}

type CursorEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Position int    `json:"position"`
}

// User is one roster entry.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Cursor   int    `json:"cursor"`
}

type UserListEvent struct {
	Type  string `json:"type"`
	Users []User `json:"users"`
}

// SnapshotEvent bootstraps a newly attached client with the full
// character sequence, tombstones included.
type SnapshotEvent struct {
	Type  string      `json:"type"`
	Chars []crdt.Char `json:"chars"`
}

// ErrorEvent is sent to the offending client only, never broadcast.
type ErrorEvent struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}
