// Package domain contains core concepts of the messaging gateway.
// This file defines the Message entity and its ordering rules.
// Messages are immutable after persistence except for delivery flags.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one private message between exactly two users.
// The ID is assigned at persistence time; CreatedAt is the sole ordering
// key for history retrieval, ties broken by ID inside the storage key.
type Message struct {
	ID        uuid.UUID
	From      string
	To        string
	Text      string
	Delivered bool
	Seen      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PairKey returns the direction-independent conversation key for two users.
// Both A->B and B->A messages share the same key so a single prefix scan
// covers the whole conversation.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
