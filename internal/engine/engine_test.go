package engine

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/karolinaw/hippocampus/internal/embedder/mock"
	"github.com/karolinaw/hippocampus/internal/storage"
)

// stubEmbedder returns canned vectors for known texts and falls back to the
// deterministic mock embedder otherwise (whose vectors for distinct texts
// are effectively orthogonal). Setting fail simulates a model outage.
type stubEmbedder struct {
	vecs map[string][]float32
	fail bool
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.fail {
		return nil, errors.New("model unavailable")
	}
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return mock.New().Embed(ctx, text)
}

func (s *stubEmbedder) Dimensions() int { return storage.Dimensions }

// setupEngine builds an engine over a fresh encrypted store and a stub
// embedder the test can program.
func setupEngine(t *testing.T) (*Engine, *stubEmbedder) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.Open(dbPath, "test passphrase")
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	stub := &stubEmbedder{vecs: map[string][]float32{}}
	return New(store, stub), stub
}

// angleVec returns cos(theta)*e0 + sin(theta)*e1; the cosine between
// angleVec(a) and angleVec(b) is cos(a-b).
func angleVec(theta float64) []float32 {
	v := make([]float32, storage.Dimensions)
	v[0] = float32(math.Cos(theta))
	v[1] = float32(math.Sin(theta))
	return v
}

// thetaFor returns the angle whose cosine is sim.
func thetaFor(sim float64) float64 { return math.Acos(sim) }

func tick() { time.Sleep(5 * time.Millisecond) }

func TestSanitizeContent(t *testing.T) {
	in := "a\x00b\x08c\x0bd\x0ce\x0ef\x1fg"
	if got := sanitizeContent(in); got != "abcdefg" {
		t.Errorf("sanitizeContent = %q, want %q", got, "abcdefg")
	}
	// Tab, LF and CR survive.
	keep := "a\tb\nc\rd"
	if got := sanitizeContent(keep); got != keep {
		t.Errorf("sanitizeContent stripped whitespace: %q", got)
	}
}
