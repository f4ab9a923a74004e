package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/karolinaw/hippocampus/internal/models"
)

// Dimensions is the embedding vector size (all-MiniLM-L6-v2).
const Dimensions = 384

// VectorIndex stores observation embeddings and scores them against query
// vectors. The scan is exhaustive on purpose: the corpus tops out around
// 10^4 vectors, well under a millisecond of dot products.
type VectorIndex struct {
	db *sql.DB
}

// VectorQuery narrows a semantic search.
type VectorQuery struct {
	Limit int    // defaults to 10
	Type  string // optional entity type filter
	Since string // optional ISO-8601 lower bound on observation created_at
}

// Store inserts the embedding row for an observation. The vector must have
// exactly Dimensions components; callers hand in unit-length vectors.
func (v *VectorIndex) Store(entityID, observationID string, vector []float32, text string) (*models.Embedding, error) {
	if len(vector) != Dimensions {
		return nil, fmt.Errorf("vector has %d dimensions, want %d", len(vector), Dimensions)
	}
	id := uuid.New().String()
	_, err := v.db.Exec(
		`INSERT INTO embeddings (id, entity_id, observation_id, vector, text_content) VALUES (?, ?, ?, ?, ?)`,
		id, entityID, observationID, packVector(vector), text,
	)
	if err != nil {
		return nil, fmt.Errorf("insert embedding: %w", err)
	}
	return &models.Embedding{
		ID:            id,
		EntityID:      entityID,
		ObservationID: observationID,
		Vector:        vector,
		TextContent:   text,
	}, nil
}

// DeleteByObservation removes the embedding for one observation.
func (v *VectorIndex) DeleteByObservation(observationID string) (int64, error) {
	res, err := v.db.Exec(`DELETE FROM embeddings WHERE observation_id = ?`, observationID)
	if err != nil {
		return 0, fmt.Errorf("delete embedding: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteByEntity removes all embeddings owned by an entity.
func (v *VectorIndex) DeleteByEntity(entityID string) (int64, error) {
	res, err := v.db.Exec(`DELETE FROM embeddings WHERE entity_id = ?`, entityID)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListByEntity returns full embedding rows for one entity, or for every
// entity when entityID is empty. Used by dedup and consolidation.
func (v *VectorIndex) ListByEntity(entityID string) ([]models.Embedding, error) {
	q := `SELECT id, entity_id, observation_id, vector, text_content, created_at FROM embeddings`
	var args []any
	if entityID != "" {
		q += ` WHERE entity_id = ?`
		args = append(args, entityID)
	}
	q += ` ORDER BY created_at`

	rows, err := v.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var out []models.Embedding
	for rows.Next() {
		var e models.Embedding
		var blob []byte
		if err := rows.Scan(&e.ID, &e.EntityID, &e.ObservationID, &blob, &e.TextContent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.Vector = unpackVector(blob)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Search scores every stored vector against query (both unit-length, so the
// dot product is the cosine similarity), sorts descending and truncates.
func (v *VectorIndex) Search(query []float32, q VectorQuery) ([]models.SearchHit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	sb := strings.Builder{}
	sb.WriteString(
		`SELECT emb.observation_id, emb.entity_id, e.name, e.entity_type, o.content, o.source, o.created_at, emb.vector
		 FROM embeddings emb
		 JOIN entities e ON e.id = emb.entity_id
		 JOIN observations o ON o.id = emb.observation_id`)
	var conds []string
	var args []any
	if q.Type != "" {
		conds = append(conds, `e.entity_type = ?`)
		args = append(args, q.Type)
	}
	if q.Since != "" {
		conds = append(conds, `o.created_at >= ?`)
		args = append(args, q.Since)
	}
	if len(conds) > 0 {
		sb.WriteString(` WHERE ` + strings.Join(conds, ` AND `))
	}

	rows, err := v.db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		var blob []byte
		if err := rows.Scan(&h.ObservationID, &h.EntityID, &h.EntityName, &h.EntityType,
			&h.Content, &h.Source, &h.CreatedAt, &blob); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		h.Similarity = Dot(query, unpackVector(blob))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Dot returns the dot product of two equal-length vectors. On unit vectors
// this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// packVector encodes a float32 slice as little-endian IEEE-754 bytes.
func packVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// unpackVector decodes a little-endian float32 BLOB.
func unpackVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
