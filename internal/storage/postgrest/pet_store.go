// Package postgrest looks up pets through the hosted backend's REST interface.
package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/pet-preview/internal/pet"
)

const maxErrorBody = 4 << 10

// Config captures the connection parameters of the hosted backend.
type Config struct {
	BaseURL string
	APIKey  string
	Table   string
}

// StatusError reports a non-2xx response from the REST endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("postgrest: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("postgrest: status=%d body=%s", e.StatusCode, e.Body)
}

// PetStore issues point lookups against /rest/v1/{table}.
type PetStore struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// New builds a PetStore. The client is shared across requests and should not carry its own timeout; the caller
// bounds every lookup through the request context.
func New(client *http.Client, cfg Config) (*PetStore, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend.url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("backend.anon_key is required")
	}
	table := cfg.Table
	if table == "" {
		table = "pets"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &PetStore{
		client:   client,
		endpoint: base + "/rest/v1/" + url.PathEscape(table),
		apiKey:   cfg.APIKey,
	}, nil
}

// GetPet fetches the projection for a single pet id.
func (s *PetStore) GetPet(ctx context.Context, id string) (pet.Pet, error) {
	q := url.Values{}
	q.Set("select", strings.Join(pet.Projection, ","))
	q.Set("id", "eq."+id)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return pet.Pet{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return pet.Pet{}, fmt.Errorf("query pet %s: %w", id, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return pet.Pet{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var rows []pet.Pet
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return pet.Pet{}, fmt.Errorf("decode pet %s: %w", id, err)
	}
	if len(rows) == 0 {
		return pet.Pet{}, pet.ErrNotFound
	}
	return rows[0], nil
}

// Ping checks that the REST endpoint answers for the configured table.
func (s *PetStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.endpoint+"?limit=0", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping postgrest: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // empty body
	if resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
