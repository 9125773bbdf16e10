package commons

import (
	"github.com/google/uuid"

	"github.com/skeinlabs/skein/crdt"
)

// Message represents the message sent over the wire.
type Message struct {
	Username string `json:"username,omitempty"`

	// Text carries free-form content: join announcements, the assigned
	// site ID, and the list of active users.
	Text string `json:"text,omitempty"`

	// Type represents the message type.
	Type MessageType `json:"type"`

	// ID represents the client's UUID.
	ID uuid.UUID `json:"ID"`

	// Operation is the CRDT operation being broadcast.
	Operation crdt.Operation `json:"operation"`

	// Operations is a full operation log, used for document sync. Large,
	// so only sent when a client actually requests the document.
	Operations []crdt.Operation `json:"operations,omitempty"`

	// Version is a vector clock: a client's observed frontier on version
	// reports, or the server's stability watermark on stable messages.
	Version crdt.VClock `json:"version,omitempty"`
}

// MessageType represents the type of the message.
type MessageType string

const (
	// OperationMessage carries a single insert or delete.
	OperationMessage MessageType = "operation"

	// DocSyncMessage carries a full operation log to a joining client.
	DocSyncMessage MessageType = "docSync"

	// DocReqMessage asks a peer for its operation log.
	DocReqMessage MessageType = "docReq"

	// SiteIDMessage delivers the server-assigned site ID.
	SiteIDMessage MessageType = "SiteID"

	// JoinMessage announces a new participant.
	JoinMessage MessageType = "join"

	// UsersMessage carries the list of active users.
	UsersMessage MessageType = "users"

	// VersionMessage reports a client's observed vector clock to the
	// server.
	VersionMessage MessageType = "version"

	// StableMessage broadcasts the server's causal-stability watermark;
	// clients may reclaim tombstones at or below it.
	StableMessage MessageType = "stable"
)
