package entity

import "github.com/google/uuid"

// NewID returns a time-ordered UUIDv7 string
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
