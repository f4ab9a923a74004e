package engine

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/karolinaw/hippocampus/internal/models"
	"github.com/karolinaw/hippocampus/internal/storage"
)

// recallFloor is the minimum similarity for a semantic hit to survive into
// recall output.
const recallFloor = 0.15

// RecallInput is the recall tool payload.
type RecallInput struct {
	Query string
	Limit int
	Type  string
	Since string
}

// RecallResult is the fused recall output.
type RecallResult struct {
	Success  bool            `json:"success"`
	Count    int             `json:"count"`
	Memories []models.Memory `json:"memories"`
	Message  string          `json:"message,omitempty"`
}

// Recall runs semantic and lexical search concurrently and fuses them:
// semantic hits first in descending similarity, then lexical hits not
// already present, newest first. An embedder failure degrades to
// lexical-only rather than failing the call.
func (e *Engine) Recall(ctx context.Context, in RecallInput) (*RecallResult, error) {
	start := time.Now()

	if in.Query == "" {
		return &RecallResult{Success: false, Memories: []models.Memory{}, Message: "query must not be empty"}, nil
	}
	if utf8.RuneCountInString(in.Query) > maxQueryLen {
		return &RecallResult{Success: false, Memories: []models.Memory{}, Message: fmt.Sprintf("query exceeds %d characters", maxQueryLen)}, nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	var semantic []models.SearchHit
	var lexical []models.SearchHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := e.semanticSearch(gctx, in.Query, limit, in.Type, in.Since)
		if err != nil {
			// Degrade: recall still succeeds on the lexical leg alone.
			log.Printf("recall: semantic leg failed (%v), falling back to lexical only", errKind(err))
			return nil
		}
		semantic = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.store.Observations().LexicalSearch(storage.LexicalQuery{
			Query: in.Query, Limit: limit, Type: in.Type, Since: in.Since,
		})
		if err != nil {
			return err
		}
		lexical = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, limit)
	memories := []models.Memory{}
	for _, h := range semantic {
		if h.Similarity < recallFloor || seen[h.ObservationID] {
			continue
		}
		seen[h.ObservationID] = true
		sim := h.Similarity
		memories = append(memories, models.Memory{
			ObservationID: h.ObservationID,
			Entity:        h.EntityName,
			Type:          h.EntityType,
			Content:       h.Content,
			Source:        h.Source,
			RememberedAt:  h.CreatedAt,
			Similarity:    &sim,
		})
	}
	for _, h := range lexical {
		if seen[h.ObservationID] {
			continue
		}
		seen[h.ObservationID] = true
		memories = append(memories, models.Memory{
			ObservationID: h.ObservationID,
			Entity:        h.EntityName,
			Type:          h.EntityType,
			Content:       h.Content,
			Source:        h.Source,
			RememberedAt:  h.CreatedAt,
		})
	}
	if len(memories) > limit {
		memories = memories[:limit]
	}

	log.Printf("recall: %d results in %s", len(memories), time.Since(start).Round(time.Millisecond))
	return &RecallResult{Success: true, Count: len(memories), Memories: memories}, nil
}

// semanticSearch embeds the query and scans the vector index.
func (e *Engine) semanticSearch(ctx context.Context, query string, limit int, entityType, since string) ([]models.SearchHit, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return e.store.Vectors().Search(vec, storage.VectorQuery{Limit: limit, Type: entityType, Since: since})
}

// errKind reduces an error to a loggable kind without user content.
func errKind(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
