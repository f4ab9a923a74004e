package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/karolinaw/hippocampus/internal/models"
)

// RelationshipRepo is the typed API over the relationships table.
type RelationshipRepo struct {
	db *sql.DB
}

// Create inserts a directed relationship between two entity ids.
func (r *RelationshipRepo) Create(fromID, toID, relationType string) (*models.Relationship, error) {
	if relationType == "" {
		relationType = "relates_to"
	}
	id := uuid.New().String()
	_, err := r.db.Exec(
		`INSERT INTO relationships (id, from_entity, to_entity, relation_type) VALUES (?, ?, ?, ?)`,
		id, fromID, toID, relationType,
	)
	if err != nil {
		return nil, fmt.Errorf("insert relationship: %w", err)
	}

	var rel models.Relationship
	err = r.db.QueryRow(
		`SELECT id, from_entity, to_entity, relation_type, created_at FROM relationships WHERE id = ?`, id,
	).Scan(&rel.ID, &rel.FromEntity, &rel.ToEntity, &rel.RelationType, &rel.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("read back relationship: %w", err)
	}
	return &rel, nil
}

// ListByEntity returns relationships where the entity is either endpoint.
func (r *RelationshipRepo) ListByEntity(entityID string) ([]models.Relationship, error) {
	rows, err := r.db.Query(
		`SELECT id, from_entity, to_entity, relation_type, created_at FROM relationships
		 WHERE from_entity = ? OR to_entity = ? ORDER BY created_at`,
		entityID, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var rels []models.Relationship
	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(&rel.ID, &rel.FromEntity, &rel.ToEntity, &rel.RelationType, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// ExistsBetween reports whether any relationship joins a and b, in either
// direction.
func (r *RelationshipRepo) ExistsBetween(a, b string) (bool, error) {
	var one int
	err := r.db.QueryRow(
		`SELECT 1 FROM relationships
		 WHERE (from_entity = ? AND to_entity = ?) OR (from_entity = ? AND to_entity = ?)
		 LIMIT 1`,
		a, b, b, a,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("relationship exists: %w", err)
	}
	return true, nil
}

// Delete removes a single relationship.
func (r *RelationshipRepo) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM relationships WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return nil
}

// DeleteByEntity removes all relationships touching the entity.
func (r *RelationshipRepo) DeleteByEntity(entityID string) (int64, error) {
	res, err := r.db.Exec(
		`DELETE FROM relationships WHERE from_entity = ? OR to_entity = ?`,
		entityID, entityID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete relationships: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RelatedEntities walks the relationship graph breadth-first from seed,
// treating edges as undirected, and returns each reachable entity at its
// shortest-path depth. The seed itself is excluded; maxDepth outside [0,3]
// is clamped and maxDepth 0 returns an empty map.
func (r *RelationshipRepo) RelatedEntities(seedID string, maxDepth int) (map[string]models.RelatedEntity, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxDepth > 3 {
		maxDepth = 3
	}

	found := map[string]models.RelatedEntity{}
	if maxDepth == 0 {
		return found, nil
	}

	visited := map[string]bool{seedID: true}
	frontier := []string{seedID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			rows, err := r.db.Query(
				`SELECT e.id, e.name, e.entity_type
				 FROM relationships r
				 JOIN entities e ON e.id = CASE WHEN r.from_entity = ? THEN r.to_entity ELSE r.from_entity END
				 WHERE r.from_entity = ? OR r.to_entity = ?`,
				id, id, id,
			)
			if err != nil {
				return nil, fmt.Errorf("expand neighbors: %w", err)
			}
			for rows.Next() {
				var re models.RelatedEntity
				if err := rows.Scan(&re.ID, &re.Name, &re.Type); err != nil {
					rows.Close()
					return nil, fmt.Errorf("scan neighbor: %w", err)
				}
				if visited[re.ID] {
					continue
				}
				visited[re.ID] = true
				re.Depth = depth
				found[re.ID] = re
				next = append(next, re.ID)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			rows.Close()
		}
		frontier = next
	}
	return found, nil
}
