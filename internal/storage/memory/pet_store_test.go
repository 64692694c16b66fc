package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pet-preview/internal/pet"
)

func TestPetStoreLookup(t *testing.T) {
	t.Parallel()

	store := NewPetStore(pet.Pet{ID: "a1", Name: "Bella"})

	got, err := store.GetPet(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "Bella", got.Name)

	_, err = store.GetPet(context.Background(), "b2")
	require.ErrorIs(t, err, pet.ErrNotFound)

	store.Put(pet.Pet{ID: "b2", Name: "Max"})
	got, err = store.GetPet(context.Background(), "b2")
	require.NoError(t, err)
	require.Equal(t, "Max", got.Name)

	store.Delete("a1")
	_, err = store.GetPet(context.Background(), "a1")
	require.ErrorIs(t, err, pet.ErrNotFound)
}

func TestPetStoreHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	store := NewPetStore(pet.Pet{ID: "a1", Name: "Bella"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetPet(ctx, "a1")
	require.ErrorIs(t, err, context.Canceled)
}
