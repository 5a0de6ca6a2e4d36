// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Participant is a currently-present chat identity tracked for liveness.
// It is created by registration, touched by heartbeats and removed only
// by the presence sweep. At most one participant per name exists at any time.
type Participant struct {
	Name     string
	LastSeen time.Time
}

// Expired reports whether the participant has been silent since before the deadline.
func (p Participant) Expired(deadline time.Time) bool {
	return !p.LastSeen.After(deadline)
}
