// Package sqlite provides a local SQLite pet database for development and demos.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/pet-preview/internal/pet"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PetStore reads pets from a SQLite file.
type PetStore struct {
	db    *sql.DB
	table string
}

// Open opens (or creates) the database at path and ensures the pets table exists.
func Open(ctx context.Context, path, table string) (*PetStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("backend.dsn is required for sqlite")
	}
	if table == "" {
		table = "pets"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	s := &PetStore{db: db, table: table}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PetStore) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	image_url TEXT
)`, s.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Upsert writes a record; used to seed fixtures.
func (s *PetStore) Upsert(ctx context.Context, p pet.Pet) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (id, name, description, image_url) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description, image_url = excluded.image_url`,
		s.table)
	if _, err := s.db.ExecContext(ctx, stmt, p.ID, p.Name, p.Description, p.ImageURL); err != nil {
		return fmt.Errorf("upsert pet %s: %w", p.ID, err)
	}
	return nil
}

// GetPet looks up a single pet by id.
func (s *PetStore) GetPet(ctx context.Context, id string) (pet.Pet, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1", strings.Join(pet.Projection, ", "), s.table)
	var (
		p           pet.Pet
		description sql.NullString
		imageURL    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &description, &imageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pet.Pet{}, pet.ErrNotFound
		}
		return pet.Pet{}, fmt.Errorf("select pet %s: %w", id, err)
	}
	if description.Valid {
		p.Description = &description.String
	}
	if imageURL.Valid {
		p.ImageURL = &imageURL.String
	}
	return p, nil
}

// Ping verifies the database handle is usable.
func (s *PetStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *PetStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
