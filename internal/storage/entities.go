package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/karolinaw/hippocampus/internal/models"
)

// EntityRepo is the typed API over the entities table.
type EntityRepo struct {
	db *sql.DB
}

const entityCols = `id, name, entity_type, created_at, updated_at`

// FindByID returns the entity with the given id, or nil if absent.
func (r *EntityRepo) FindByID(id string) (*models.Entity, error) {
	row := r.db.QueryRow(`SELECT `+entityCols+` FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

// FindByName returns the entity with the given name (case-sensitive), or nil.
func (r *EntityRepo) FindByName(name string) (*models.Entity, error) {
	row := r.db.QueryRow(`SELECT `+entityCols+` FROM entities WHERE name = ?`, name)
	return scanEntity(row)
}

// FindOrCreate returns the entity named name, inserting it first if needed.
// The upsert is atomic: two concurrent calls with the same name both resolve
// to the single row the UNIQUE constraint admits.
func (r *EntityRepo) FindOrCreate(name, entityType string) (*models.Entity, error) {
	_, err := r.db.Exec(
		`INSERT INTO entities (id, name, entity_type) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		uuid.New().String(), name, entityType,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert entity: %w", err)
	}
	e, err := r.FindByName(name)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("upsert entity: row vanished")
	}
	return e, nil
}

// List returns entities ordered by updated_at descending, optionally
// filtered by type. limit <= 0 defaults to 100.
func (r *EntityRepo) List(entityType string, limit int) ([]models.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if entityType != "" {
		rows, err = r.db.Query(
			`SELECT `+entityCols+` FROM entities WHERE entity_type = ? ORDER BY updated_at DESC LIMIT ?`,
			entityType, limit,
		)
	} else {
		rows, err = r.db.Query(
			`SELECT `+entityCols+` FROM entities ORDER BY updated_at DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// SearchByNameSubstring returns up to 10 entities whose name contains q,
// case-insensitively.
func (r *EntityRepo) SearchByNameSubstring(q string) ([]models.Entity, error) {
	rows, err := r.db.Query(
		`SELECT `+entityCols+` FROM entities
		 WHERE name LIKE '%' || ? || '%' ESCAPE '\'
		 ORDER BY updated_at DESC LIMIT 10`,
		escapeLike(q),
	)
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// Touch advances updated_at to the current wall-clock.
func (r *EntityRepo) Touch(id string) error {
	_, err := r.db.Exec(
		`UPDATE entities SET updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("touch entity: %w", err)
	}
	return nil
}

// Delete removes the entity row; observations, relationships and embeddings
// cascade.
func (r *EntityRepo) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM entities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	return nil
}

func scanEntity(row *sql.Row) (*models.Entity, error) {
	var e models.Entity
	err := row.Scan(&e.ID, &e.Name, &e.EntityType, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan entity: %w", err)
	}
	return &e, nil
}

func scanEntities(rows *sql.Rows) ([]models.Entity, error) {
	var out []models.Entity
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.EntityType, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
