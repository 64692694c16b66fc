package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pet-preview/internal/pet"
)

func TestLoadFixtures(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pets:
  - id: aa11
    name: Bella
    image_url: https://cdn.example.com/bella.jpg
  - id: bb22
    name: Max
    description: Loves the beach.
`), 0o600))

	store, err := LoadFixtures(path)
	require.NoError(t, err)

	bella, err := store.GetPet(context.Background(), "aa11")
	require.NoError(t, err)
	require.True(t, bella.HasImage())
	require.Nil(t, bella.Description)

	maxPet, err := store.GetPet(context.Background(), "bb22")
	require.NoError(t, err)
	require.False(t, maxPet.HasImage())
	require.Equal(t, "Loves the beach.", maxPet.DescriptionText())

	_, err = store.GetPet(context.Background(), "cc33")
	require.ErrorIs(t, err, pet.ErrNotFound)
}

func TestLoadFixturesRejectsBadInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := LoadFixtures(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	noID := filepath.Join(dir, "noid.yaml")
	require.NoError(t, os.WriteFile(noID, []byte("pets:\n  - name: Ghost\n"), 0o600))
	_, err = LoadFixtures(noID)
	require.ErrorContains(t, err, "no id")
}
