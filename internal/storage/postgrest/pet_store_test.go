package postgrest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pet-preview/internal/pet"
)

const bellaID = "3f2b8c1e-5a4d-4e8f-9b7a-1c2d3e4f5a6b"

func newTestStore(t *testing.T, h http.HandlerFunc) *PetStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	store, err := New(srv.Client(), Config{BaseURL: srv.URL + "/", APIKey: "anon-key"})
	require.NoError(t, err)
	return store
}

func TestGetPetSendsProjectionAndKeys(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/pets", r.URL.Path)
		assert.Equal(t, "id,name,description,image_url", r.URL.Query().Get("select"))
		assert.Equal(t, "eq."+bellaID, r.URL.Query().Get("id"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"` + bellaID + `","name":"Bella","description":null,"image_url":"https://cdn.example.com/b.jpg"}]`))
	})

	got, err := store.GetPet(context.Background(), bellaID)
	require.NoError(t, err)
	require.Equal(t, bellaID, got.ID)
	require.Equal(t, "Bella", got.Name)
	require.Nil(t, got.Description)
	require.True(t, got.HasImage())
}

func TestGetPetEmptyArrayIsNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := store.GetPet(context.Background(), "abc")
	require.ErrorIs(t, err, pet.ErrNotFound)
}

func TestGetPetNon2xxIsStatusError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"22P02","message":"invalid input syntax for type uuid"}`))
	})

	_, err := store.GetPet(context.Background(), "abc")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Contains(t, statusErr.Body, "22P02")
}

func TestGetPetMalformedJSON(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := store.GetPet(context.Background(), bellaID)
	require.ErrorContains(t, err, "decode pet")
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{APIKey: "k"})
	require.ErrorContains(t, err, "backend.url")

	_, err = New(nil, Config{BaseURL: "https://x.example.co"})
	require.ErrorContains(t, err, "backend.anon_key")

	store, err := New(nil, Config{BaseURL: "https://x.example.co", APIKey: "k", Table: "animals"})
	require.NoError(t, err)
	require.Equal(t, "https://x.example.co/rest/v1/animals", store.endpoint)
}

func TestPing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusUnauthorized)
	})
	require.Error(t, store.Ping(context.Background()))
}
