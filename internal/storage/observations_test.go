package storage

import (
	"testing"
)

func TestCreateObservationTouchesEntity(t *testing.T) {
	s := setupStore(t)

	e, _ := s.Entities().FindOrCreate("k", "")
	before := e.UpdatedAt

	tick()
	if _, err := s.Observations().Create(e.ID, "a fact", "chat"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	after, _ := s.Entities().FindByID(e.ID)
	if after.UpdatedAt <= before {
		t.Errorf("updated_at did not advance: %s -> %s", before, after.UpdatedAt)
	}
}

func TestListByEntityNewestFirst(t *testing.T) {
	s := setupStore(t)

	e, _ := s.Entities().FindOrCreate("k", "")
	s.Observations().Create(e.ID, "first", "")
	tick()
	s.Observations().Create(e.ID, "second", "")

	obs, err := s.Observations().ListByEntity(e.ID)
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(obs))
	}
	if obs[0].Content != "second" {
		t.Errorf("Expected newest first, got %q", obs[0].Content)
	}
}

func TestLexicalSearchMatchesContentAndEntityName(t *testing.T) {
	s := setupStore(t)

	delft, _ := s.Entities().FindOrCreate("delft", "place")
	k, _ := s.Entities().FindOrCreate("k", "person")
	s.Observations().Create(delft.ID, "a city in the Netherlands", "")
	s.Observations().Create(k.ID, "studied in Delft", "")
	s.Observations().Create(k.ID, "likes coffee", "")

	hits, err := s.Observations().LexicalSearch(LexicalQuery{Query: "delft"})
	if err != nil {
		t.Fatalf("LexicalSearch: %v", err)
	}
	// Matches the observation mentioning Delft and every observation of
	// the entity named delft.
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
}

func TestLexicalSearchFilters(t *testing.T) {
	s := setupStore(t)

	alice, _ := s.Entities().FindOrCreate("alice", "person")
	proj, _ := s.Entities().FindOrCreate("hippocampus", "project")
	s.Observations().Create(alice.ID, "works on encryption", "")
	tick()
	cutoffObs, _ := s.Observations().Create(proj.ID, "uses encryption at rest", "")

	hits, err := s.Observations().LexicalSearch(LexicalQuery{Query: "encryption", Type: "project"})
	if err != nil {
		t.Fatalf("LexicalSearch: %v", err)
	}
	if len(hits) != 1 || hits[0].EntityName != "hippocampus" {
		t.Errorf("Type filter failed: %v", hits)
	}

	hits, err = s.Observations().LexicalSearch(LexicalQuery{Query: "encryption", Since: cutoffObs.CreatedAt})
	if err != nil {
		t.Fatalf("LexicalSearch: %v", err)
	}
	if len(hits) != 1 || hits[0].ObservationID != cutoffObs.ID {
		t.Errorf("Since filter failed: %v", hits)
	}

	hits, err = s.Observations().LexicalSearch(LexicalQuery{Query: "encryption", Limit: 1})
	if err != nil {
		t.Fatalf("LexicalSearch: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("Limit 1 returned %d hits", len(hits))
	}
}

func TestFetchByIDsPreservesOrder(t *testing.T) {
	s := setupStore(t)

	e, _ := s.Entities().FindOrCreate("k", "")
	a, _ := s.Observations().Create(e.ID, "a", "")
	b, _ := s.Observations().Create(e.ID, "b", "")
	c, _ := s.Observations().Create(e.ID, "c", "")

	obs, err := s.Observations().FetchByIDs([]string{c.ID, a.ID, b.ID})
	if err != nil {
		t.Fatalf("FetchByIDs: %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("Expected 3 observations, got %d", len(obs))
	}
	if obs[0].Content != "c" || obs[1].Content != "a" || obs[2].Content != "b" {
		t.Errorf("Order not preserved: %v", obs)
	}

	// Missing ids are skipped, not errors.
	obs, err = s.Observations().FetchByIDs([]string{a.ID, "nope"})
	if err != nil {
		t.Fatalf("FetchByIDs with missing id: %v", err)
	}
	if len(obs) != 1 {
		t.Errorf("Expected 1 observation, got %d", len(obs))
	}
}

func TestListMissingEmbeddings(t *testing.T) {
	s := setupStore(t)

	e, _ := s.Entities().FindOrCreate("k", "")
	embedded, _ := s.Observations().Create(e.ID, "has vector", "")
	bare, _ := s.Observations().Create(e.ID, "no vector", "")

	vec := make([]float32, Dimensions)
	vec[0] = 1
	s.Vectors().Store(e.ID, embedded.ID, vec, embedded.Content)

	missing, err := s.Observations().ListMissingEmbeddings()
	if err != nil {
		t.Fatalf("ListMissingEmbeddings: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != bare.ID {
		t.Errorf("Expected only the bare observation, got %v", missing)
	}
}
