// Package postgres provides a Postgres-backed pet lookup.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/pet-preview/internal/pet"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PetStoreConfig controls the Postgres connection pool used for pet lookups.
type PetStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryCloser interface {
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// PetStore reads pet rows from Postgres.
type PetStore struct {
	pool  queryCloser
	table string
	query string
}

// NewPetStore creates a Postgres-backed PetStore using the provided config.
func NewPetStore(ctx context.Context, cfg PetStoreConfig) (*PetStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("backend.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewPetStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPetStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPetStoreWithPool(pool queryCloser, table string) (*PetStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "pets"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE id::text = $1 LIMIT 1",
		strings.Join(pet.Projection, ", "),
		table,
	)
	return &PetStore{pool: pool, table: table, query: query}, nil
}

// GetPet looks up a single pet by id.
func (s *PetStore) GetPet(ctx context.Context, id string) (pet.Pet, error) {
	if s == nil || s.pool == nil {
		return pet.Pet{}, fmt.Errorf("pet store is not configured")
	}
	var (
		p           pet.Pet
		description *string
		imageURL    *string
	)
	err := s.pool.QueryRow(ctx, s.query, id).Scan(&p.ID, &p.Name, &description, &imageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pet.Pet{}, pet.ErrNotFound
		}
		return pet.Pet{}, fmt.Errorf("select pet %s: %w", id, err)
	}
	p.Description = description
	p.ImageURL = imageURL
	return p, nil
}

// Ping verifies the pool can reach Postgres.
func (s *PetStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PetStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
