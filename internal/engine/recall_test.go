package engine

import (
	"context"
	"testing"
)

func TestRecallOrdersSemanticHitsBySimilarity(t *testing.T) {
	e, stub := setupEngine(t)
	ctx := context.Background()

	stub.vecs["the query"] = angleVec(0)
	stub.vecs["semantically near"] = angleVec(thetaFor(0.3))
	stub.vecs["mentions the query verbatim"] = angleVec(thetaFor(0.9))

	e.Remember(ctx, RememberInput{Content: "semantically near", Entity: "k"})
	tick()
	e.Remember(ctx, RememberInput{Content: "mentions the query verbatim", Entity: "k"})

	result, err := e.Recall(ctx, RecallInput{Query: "the query"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if !result.Success || result.Count != 2 {
		t.Fatalf("Recall = %+v", result)
	}
	// Both clear the semantic floor; highest similarity first.
	if result.Memories[0].Content != "mentions the query verbatim" {
		t.Errorf("First memory = %q", result.Memories[0].Content)
	}
	for _, m := range result.Memories {
		if m.Similarity == nil {
			t.Errorf("Semantic hit %q missing similarity", m.Content)
		}
	}
}

func TestRecallFloorsSemanticResults(t *testing.T) {
	e, stub := setupEngine(t)
	ctx := context.Background()

	stub.vecs["the query"] = angleVec(0)
	stub.vecs["barely related"] = angleVec(thetaFor(0.1)) // below the 0.15 floor

	e.Remember(ctx, RememberInput{Content: "barely related", Entity: "k"})

	result, err := e.Recall(ctx, RecallInput{Query: "the query"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if result.Count != 0 {
		t.Errorf("Sub-floor similarity leaked into results: %+v", result.Memories)
	}
}

func TestRecallMergesLexicalHits(t *testing.T) {
	e, stub := setupEngine(t)
	ctx := context.Background()

	stub.vecs["coffee"] = angleVec(0)
	stub.vecs["enjoys coffee every morning"] = angleVec(thetaFor(0.5))

	// Semantic hit (0.5 >= floor) that also matches lexically: must
	// appear once, as a semantic hit.
	e.Remember(ctx, RememberInput{Content: "enjoys coffee every morning", Entity: "k"})
	// Lexical-only hit: orthogonal vector, matching substring.
	e.Remember(ctx, RememberInput{Content: "bought a coffee grinder", Entity: "k"})

	result, err := e.Recall(ctx, RecallInput{Query: "coffee"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("Count = %d, want 2: %+v", result.Count, result.Memories)
	}
	if result.Memories[0].Content != "enjoys coffee every morning" || result.Memories[0].Similarity == nil {
		t.Errorf("Semantic hit should come first with similarity: %+v", result.Memories[0])
	}
	if result.Memories[1].Similarity != nil {
		t.Errorf("Lexical hit should have no similarity: %+v", result.Memories[1])
	}
}

func TestRecallDegradesToLexicalOnEmbedderFailure(t *testing.T) {
	e, stub := setupEngine(t)
	ctx := context.Background()

	e.Remember(ctx, RememberInput{Content: "drinks oolong tea", Entity: "k"})
	stub.fail = true

	result, err := e.Recall(ctx, RecallInput{Query: "oolong"})
	if err != nil {
		t.Fatalf("Recall should degrade, not fail: %v", err)
	}
	if !result.Success || result.Count != 1 {
		t.Errorf("Lexical-only recall failed: %+v", result)
	}
}

func TestRecallLimits(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	e.Remember(ctx, RememberInput{Content: "tea fact one", Entity: "k"})
	tick()
	e.Remember(ctx, RememberInput{Content: "tea fact two", Entity: "k"})

	result, err := e.Recall(ctx, RecallInput{Query: "tea", Limit: 1})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if result.Count != 1 {
		t.Errorf("Limit 1 returned %d results", result.Count)
	}

	// Out-of-range limits clamp rather than error.
	if _, err := e.Recall(ctx, RecallInput{Query: "tea", Limit: 51}); err != nil {
		t.Errorf("Limit 51 should clamp: %v", err)
	}
}

func TestRecallRejectsEmptyQuery(t *testing.T) {
	e, _ := setupEngine(t)

	result, err := e.Recall(context.Background(), RecallInput{Query: ""})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if result.Success {
		t.Error("Empty query accepted")
	}
}
