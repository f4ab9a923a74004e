package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/karolinaw/hippocampus/internal/models"
)

// ObservationRepo is the typed API over the observations table.
type ObservationRepo struct {
	db *sql.DB
}

// LexicalQuery narrows a lexical search.
type LexicalQuery struct {
	Query string
	Limit int    // clamped to 50
	Type  string // optional entity type filter
	Since string // optional ISO-8601 lower bound on created_at
}

// Create inserts an observation and touches the owning entity.
func (r *ObservationRepo) Create(entityID, content, source string) (*models.Observation, error) {
	id := uuid.New().String()
	_, err := r.db.Exec(
		`INSERT INTO observations (id, entity_id, content, source) VALUES (?, ?, ?, ?)`,
		id, entityID, content, source,
	)
	if err != nil {
		return nil, fmt.Errorf("insert observation: %w", err)
	}
	_, err = r.db.Exec(
		`UPDATE entities SET updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE id = ?`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("touch entity: %w", err)
	}

	var o models.Observation
	err = r.db.QueryRow(
		`SELECT id, entity_id, content, source, created_at FROM observations WHERE id = ?`, id,
	).Scan(&o.ID, &o.EntityID, &o.Content, &o.Source, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("read back observation: %w", err)
	}
	return &o, nil
}

// ListByEntity returns an entity's observations, newest first.
func (r *ObservationRepo) ListByEntity(entityID string) ([]models.Observation, error) {
	rows, err := r.db.Query(
		`SELECT id, entity_id, content, source, created_at FROM observations
		 WHERE entity_id = ? ORDER BY created_at DESC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// LexicalSearch finds observations whose content or owning entity name
// contains the query substring, case-insensitively, newest first.
func (r *ObservationRepo) LexicalSearch(q LexicalQuery) ([]models.SearchHit, error) {
	limit := q.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	sb := strings.Builder{}
	sb.WriteString(
		`SELECT o.id, o.entity_id, e.name, e.entity_type, o.content, o.source, o.created_at
		 FROM observations o JOIN entities e ON e.id = o.entity_id
		 WHERE (o.content LIKE '%' || ? || '%' ESCAPE '\' OR e.name LIKE '%' || ? || '%' ESCAPE '\')`)
	args := []any{escapeLike(q.Query), escapeLike(q.Query)}
	if q.Type != "" {
		sb.WriteString(` AND e.entity_type = ?`)
		args = append(args, q.Type)
	}
	if q.Since != "" {
		sb.WriteString(` AND o.created_at >= ?`)
		args = append(args, q.Since)
	}
	sb.WriteString(` ORDER BY o.created_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := r.db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.ObservationID, &h.EntityID, &h.EntityName, &h.EntityType,
			&h.Content, &h.Source, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// FetchByIDs returns the observations for the given ids, in input order.
// Missing ids are simply absent from the result.
func (r *ObservationRepo) FetchByIDs(ids []string) ([]models.Observation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := r.db.Query(
		`SELECT id, entity_id, content, source, created_at FROM observations
		 WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch observations: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Observation, len(ids))
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.ID, &o.EntityID, &o.Content, &o.Source, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		byID[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []models.Observation
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// ListMissingEmbeddings returns observations that have no embedding row.
// Startup backfill repairs these.
func (r *ObservationRepo) ListMissingEmbeddings() ([]models.Observation, error) {
	rows, err := r.db.Query(
		`SELECT o.id, o.entity_id, o.content, o.source, o.created_at
		 FROM observations o LEFT JOIN embeddings e ON e.observation_id = o.id
		 WHERE e.id IS NULL ORDER BY o.created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list unembedded observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// Delete removes a single observation. Returns the number of rows removed.
func (r *ObservationRepo) Delete(id string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM observations WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete observation: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteByEntity removes all of an entity's observations.
func (r *ObservationRepo) DeleteByEntity(entityID string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM observations WHERE entity_id = ?`, entityID)
	if err != nil {
		return 0, fmt.Errorf("delete observations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanObservations(rows *sql.Rows) ([]models.Observation, error) {
	var out []models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.ID, &o.EntityID, &o.Content, &o.Source, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
