// Package pet defines the read-only pet record consumed by the preview responder.
package pet

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by stores when no record matches the requested id.
var ErrNotFound = errors.New("pet not found")

// Pet is the projection of a pet row needed to build a link preview.
type Pet struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description *string `json:"description" yaml:"description"`
	ImageURL    *string `json:"image_url" yaml:"image_url"`
}

// Store performs a single point lookup by id.
type Store interface {
	GetPet(ctx context.Context, id string) (Pet, error)
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HasImage reports whether the record carries a non-blank image URL.
func (p Pet) HasImage() bool {
	return p.ImageURL != nil && strings.TrimSpace(*p.ImageURL) != ""
}

// Image returns the trimmed image URL or "".
func (p Pet) Image() string {
	if p.ImageURL == nil {
		return ""
	}
	return strings.TrimSpace(*p.ImageURL)
}

// DescriptionText returns the description or "" when absent.
func (p Pet) DescriptionText() string {
	if p.Description == nil {
		return ""
	}
	return strings.TrimSpace(*p.Description)
}

// Projection lists the columns requested from every backend.
var Projection = []string{"id", "name", "description", "image_url"}
