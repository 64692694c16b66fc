package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pet-preview/internal/pet"
)

func strPtr(s string) *string { return &s }

func TestPetStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "pets.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	require.NoError(t, store.Upsert(ctx, pet.Pet{ID: "a1", Name: "Bella", ImageURL: strPtr("https://cdn.example.com/b.jpg")}))
	require.NoError(t, store.Upsert(ctx, pet.Pet{ID: "b2", Name: "Max", Description: strPtr("Good boy")}))

	bella, err := store.GetPet(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "Bella", bella.Name)
	require.Nil(t, bella.Description)
	require.Equal(t, "https://cdn.example.com/b.jpg", bella.Image())

	maxPet, err := store.GetPet(ctx, "b2")
	require.NoError(t, err)
	require.Equal(t, "Good boy", maxPet.DescriptionText())
	require.False(t, maxPet.HasImage())

	require.NoError(t, store.Upsert(ctx, pet.Pet{ID: "b2", Name: "Maximus"}))
	maxPet, err = store.GetPet(ctx, "b2")
	require.NoError(t, err)
	require.Equal(t, "Maximus", maxPet.Name)

	_, err = store.GetPet(ctx, "zz")
	require.ErrorIs(t, err, pet.ErrNotFound)
	require.NoError(t, store.Ping(ctx))
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "", "pets")
	require.ErrorContains(t, err, "backend.dsn")

	_, err = Open(context.Background(), ":memory:", "bad-name")
	require.ErrorContains(t, err, "invalid table name")
}
