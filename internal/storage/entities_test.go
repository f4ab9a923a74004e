package storage

import (
	"testing"
)

func TestFindOrCreateIsIdempotent(t *testing.T) {
	s := setupStore(t)

	first, err := s.Entities().FindOrCreate("karolina", "person")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	second, err := s.Entities().FindOrCreate("karolina", "person")
	if err != nil {
		t.Fatalf("FindOrCreate again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("Same name produced two ids: %s vs %s", first.ID, second.ID)
	}
}

func TestFindByNameIsCaseSensitive(t *testing.T) {
	s := setupStore(t)

	if _, err := s.Entities().FindOrCreate("Karolina", "person"); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	e, err := s.Entities().FindByName("karolina")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if e != nil {
		t.Error("Lowercase lookup matched a capitalized name; comparison must be case-sensitive")
	}
}

func TestListOrdersByUpdatedAtDesc(t *testing.T) {
	s := setupStore(t)

	old, _ := s.Entities().FindOrCreate("older", "")
	tick()
	if _, err := s.Entities().FindOrCreate("newer", ""); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	entities, err := s.Entities().List("", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(entities))
	}
	if entities[0].Name != "newer" {
		t.Errorf("Expected newer first, got %q", entities[0].Name)
	}

	// Touching the older entity moves it to the front.
	tick()
	if err := s.Entities().Touch(old.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	entities, err = s.Entities().List("", 0)
	if err != nil {
		t.Fatalf("List after touch: %v", err)
	}
	if entities[0].Name != "older" {
		t.Errorf("Expected touched entity first, got %q", entities[0].Name)
	}
}

func TestListFiltersByType(t *testing.T) {
	s := setupStore(t)

	s.Entities().FindOrCreate("alice", "person")
	s.Entities().FindOrCreate("hippocampus", "project")

	people, err := s.Entities().List("person", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(people) != 1 || people[0].Name != "alice" {
		t.Errorf("Expected only alice, got %v", people)
	}
}

func TestSearchByNameSubstring(t *testing.T) {
	s := setupStore(t)

	s.Entities().FindOrCreate("Hippocampus Project", "project")
	s.Entities().FindOrCreate("unrelated", "")

	matches, err := s.Entities().SearchByNameSubstring("ocamp")
	if err != nil {
		t.Fatalf("SearchByNameSubstring: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "Hippocampus Project" {
		t.Errorf("Expected one substring match, got %v", matches)
	}

	// Case-insensitive.
	matches, err = s.Entities().SearchByNameSubstring("HIPPO")
	if err != nil {
		t.Fatalf("SearchByNameSubstring: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("Expected case-insensitive match, got %v", matches)
	}

	// LIKE metacharacters match literally.
	matches, err = s.Entities().SearchByNameSubstring("100%")
	if err != nil {
		t.Fatalf("SearchByNameSubstring: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected %% to match literally, got %v", matches)
	}
}

func TestDeleteCascades(t *testing.T) {
	s := setupStore(t)

	e, _ := s.Entities().FindOrCreate("doomed", "")
	other, _ := s.Entities().FindOrCreate("other", "")
	obs, err := s.Observations().Create(e.ID, "a fact", "")
	if err != nil {
		t.Fatalf("Create observation: %v", err)
	}
	vec := make([]float32, Dimensions)
	vec[0] = 1
	if _, err := s.Vectors().Store(e.ID, obs.ID, vec, obs.Content); err != nil {
		t.Fatalf("Store vector: %v", err)
	}
	if _, err := s.Relationships().Create(e.ID, other.ID, "relates_to"); err != nil {
		t.Fatalf("Create relationship: %v", err)
	}

	if err := s.Entities().Delete(e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if got, _ := s.Observations().ListByEntity(e.ID); len(got) != 0 {
		t.Errorf("Observations survived entity delete: %v", got)
	}
	if got, _ := s.Vectors().ListByEntity(e.ID); len(got) != 0 {
		t.Errorf("Embeddings survived entity delete: %v", got)
	}
	if got, _ := s.Relationships().ListByEntity(e.ID); len(got) != 0 {
		t.Errorf("Relationships survived entity delete: %v", got)
	}
}
