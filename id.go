package deepresearch

import (
	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// Run IDs use it so stored runs sort by start time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
