// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast is the reserved recipient meaning "every current participant".
// It is not a valid participant name.
const Broadcast = "Todos"

type MessageType string

const (
	TypeMessage MessageType = "message"
	TypePrivate MessageType = "private_message"
	// TypeStatus marks server-constructed join/leave events. It is never
	// accepted from a client-authored message.
	TypeStatus MessageType = "status"
)

// Texts of the synthetic status messages emitted on join and eviction.
const (
	JoinedText = "entra na sala..."
	LeftText   = "sai da sala..."
)

// Message is a single chat event. At is stamped by the server at write
// time; the wire representation formats it as HH:mm:ss.
type Message struct {
	ID   uuid.UUID
	From string
	To   string
	Text string
	Type MessageType
	At   time.Time
}

// VisibleTo reports whether the viewer is allowed to see the message.
// Public messages and broadcasts are visible to everyone; a private
// message only to its author and its recipient.
func (m Message) VisibleTo(viewer string) bool {
	return m.From == viewer || m.To == viewer || m.To == Broadcast || m.Type == TypeMessage
}

// NewJoinStatus builds the "entered the room" event announced on registration.
func NewJoinStatus(name string, at time.Time) Message {
	return newStatus(name, JoinedText, at)
}

// NewLeaveStatus builds the "left the room" event announced by the presence sweep.
func NewLeaveStatus(name string, at time.Time) Message {
	return newStatus(name, LeftText, at)
}

func newStatus(name, text string, at time.Time) Message {
	return Message{
		ID:   uuid.New(),
		From: name,
		To:   Broadcast,
		Text: text,
		Type: TypeStatus,
		At:   at,
	}
}
