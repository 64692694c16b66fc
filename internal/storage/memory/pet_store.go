// Package memory provides in-memory pet stores for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/pet-preview/internal/pet"
)

// PetStore provides an in-memory pet lookup for development/testing.
type PetStore struct {
	mu   sync.RWMutex
	pets map[string]pet.Pet
}

// NewPetStore constructs a PetStore seeded with the given records.
func NewPetStore(seed ...pet.Pet) *PetStore {
	s := &PetStore{pets: make(map[string]pet.Pet, len(seed))}
	for _, p := range seed {
		s.pets[p.ID] = p
	}
	return s
}

// Put inserts or replaces a record.
func (s *PetStore) Put(p pet.Pet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pets[p.ID] = p
}

// Delete removes a record if present.
func (s *PetStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pets, id)
}

// GetPet returns a copy of the stored record.
func (s *PetStore) GetPet(ctx context.Context, id string) (pet.Pet, error) {
	if err := ctx.Err(); err != nil {
		return pet.Pet{}, err //nolint:wrapcheck // context errors pass through
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pets[id]
	if !ok {
		return pet.Pet{}, pet.ErrNotFound
	}
	return p, nil
}
