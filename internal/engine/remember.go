package engine

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/karolinaw/hippocampus/internal/storage"
)

// dedupThreshold is the cosine similarity at or above which two observations
// under the same entity are treated as redundant.
const dedupThreshold = 0.85

// autoLinkCandidates caps how many recently-updated entities relationship
// auto-detection considers.
const autoLinkCandidates = 500

// RememberInput is the remember tool payload.
type RememberInput struct {
	Content string
	Entity  string
	Type    string
	Source  string
}

// RememberResult reports what remember did.
type RememberResult struct {
	Success              bool     `json:"success"`
	EntityID             string   `json:"entityId,omitempty"`
	EntityName           string   `json:"entityName,omitempty"`
	ObservationID        string   `json:"observationId,omitempty"`
	RelationshipsCreated []string `json:"relationships_created"`
	Message              string   `json:"message"`
	Deduplicated         bool     `json:"deduplicated,omitempty"`
	ReplacedObservation  string   `json:"replaced_observation,omitempty"`
}

// Remember stores a fact under an entity, deduplicating against the
// entity's existing observations by embedding similarity. The dedup
// decision is made against a snapshot; a concurrent identical write can
// slip through and is left for consolidate to find.
func (e *Engine) Remember(ctx context.Context, in RememberInput) (*RememberResult, error) {
	start := time.Now()

	content, err := validateContent(in.Content)
	if err != nil {
		return &RememberResult{Success: false, Message: err.Error(), RelationshipsCreated: []string{}}, nil
	}
	name := strings.TrimSpace(in.Entity)
	if name == "" {
		name = defaultEntity
	}
	if utf8.RuneCountInString(name) > maxEntityLen {
		return &RememberResult{Success: false, Message: fmt.Sprintf("entity name exceeds %d characters", maxEntityLen), RelationshipsCreated: []string{}}, nil
	}
	if utf8.RuneCountInString(in.Type) > maxTypeLen {
		return &RememberResult{Success: false, Message: fmt.Sprintf("type exceeds %d characters", maxTypeLen), RelationshipsCreated: []string{}}, nil
	}
	if utf8.RuneCountInString(in.Source) > maxSourceLen {
		return &RememberResult{Success: false, Message: fmt.Sprintf("source exceeds %d characters", maxSourceLen), RelationshipsCreated: []string{}}, nil
	}

	entity, err := e.store.Entities().FindOrCreate(name, in.Type)
	if err != nil {
		return nil, err
	}

	vec, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	existing, err := e.store.Vectors().ListByEntity(entity.ID)
	if err != nil {
		return nil, err
	}

	bestIdx, bestSim := -1, 0.0
	for i := range existing {
		if sim := storage.Dot(vec, existing[i].Vector); sim >= dedupThreshold && sim > bestSim {
			bestIdx, bestSim = i, sim
		}
	}

	if bestIdx >= 0 {
		match := existing[bestIdx]
		if len(match.TextContent) >= len(content) {
			log.Printf("remember: deduplicated (similarity above threshold) in %s", time.Since(start).Round(time.Millisecond))
			return &RememberResult{
				Success:              true,
				EntityID:             entity.ID,
				EntityName:           entity.Name,
				ObservationID:        match.ObservationID,
				RelationshipsCreated: []string{},
				Deduplicated:         true,
				Message:              "An equivalent memory already exists; nothing stored.",
			}, nil
		}

		// The new content supersedes a shorter near-duplicate.
		if _, err := e.store.Vectors().DeleteByObservation(match.ObservationID); err != nil {
			return nil, err
		}
		if _, err := e.store.Observations().Delete(match.ObservationID); err != nil {
			return nil, err
		}
		obs, err := e.store.Observations().Create(entity.ID, content, in.Source)
		if err != nil {
			return nil, err
		}
		if _, err := e.store.Vectors().Store(entity.ID, obs.ID, vec, content); err != nil {
			return nil, err
		}
		linked, err := e.autoLink(entity.ID, content)
		if err != nil {
			return nil, err
		}
		log.Printf("remember: replaced near-duplicate, %d links in %s", len(linked), time.Since(start).Round(time.Millisecond))
		return &RememberResult{
			Success:              true,
			EntityID:             entity.ID,
			EntityName:           entity.Name,
			ObservationID:        obs.ID,
			RelationshipsCreated: linked,
			ReplacedObservation:  match.TextContent,
			Message:              "Replaced a shorter near-duplicate memory.",
		}, nil
	}

	obs, err := e.store.Observations().Create(entity.ID, content, in.Source)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Vectors().Store(entity.ID, obs.ID, vec, content); err != nil {
		return nil, err
	}
	linked, err := e.autoLink(entity.ID, content)
	if err != nil {
		return nil, err
	}

	log.Printf("remember: stored, %d links in %s", len(linked), time.Since(start).Round(time.Millisecond))
	return &RememberResult{
		Success:              true,
		EntityID:             entity.ID,
		EntityName:           entity.Name,
		ObservationID:        obs.ID,
		RelationshipsCreated: linked,
		Message:              "Memory stored.",
	}, nil
}

// autoLink scans recently-updated entities for name mentions in content and
// inserts relates_to relationships for new pairs. Returns the linked names.
func (e *Engine) autoLink(sourceID, content string) ([]string, error) {
	candidates, err := e.store.Entities().List("", autoLinkCandidates)
	if err != nil {
		return nil, err
	}

	linked := []string{}
	for _, c := range candidates {
		if c.ID == sourceID || c.Name == defaultEntity || utf8.RuneCountInString(c.Name) < 3 {
			continue
		}
		re, err := mentionPattern(c.Name)
		if err != nil {
			continue
		}
		if !re.MatchString(content) {
			continue
		}
		exists, err := e.store.Relationships().ExistsBetween(sourceID, c.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		if _, err := e.store.Relationships().Create(sourceID, c.ID, "relates_to"); err != nil {
			return nil, err
		}
		linked = append(linked, c.Name)
	}
	return linked, nil
}

var separatorRuns = regexp.MustCompile(`[-_\s]+`)

// mentionPattern compiles a case-insensitive word-boundary regex for an
// entity name, treating runs of hyphens, underscores and whitespace in the
// name as interchangeable.
func mentionPattern(name string) (*regexp.Regexp, error) {
	parts := separatorRuns.Split(name, -1)
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		escaped = append(escaped, regexp.QuoteMeta(p))
	}
	if len(escaped) == 0 {
		return nil, fmt.Errorf("name is all separators")
	}
	return regexp.Compile(`(?i)\b` + strings.Join(escaped, `[-_\s]+`) + `\b`)
}
