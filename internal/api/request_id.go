package api

import (
	googleuuid "github.com/google/uuid"

	"github.com/JakeFAU/pet-preview/internal/id/uuid"
)

const requestIDHeader = "X-Request-ID"

// validRequestID accepts inbound ids from the edge proxy only when they are well-formed UUIDs.
func validRequestID(id string) bool {
	return id != "" && uuid.Valid(id)
}

// newRequestID prefers gen's time-ordered ids and falls back to a random UUID.
func newRequestID(gen IDGenerator) string {
	if gen != nil {
		if id, err := gen.NewID(); err == nil {
			return id
		}
	}
	return googleuuid.NewString()
}
