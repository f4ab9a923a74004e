package embedder

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeTokenizerFile writes a minimal tokenizer.json with the given vocab.
func writeTokenizerFile(t *testing.T, vocab map[string]int) string {
	t.Helper()
	doc := map[string]any{"model": map[string]any{"vocab": vocab}}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTokenizeKnownWords(t *testing.T) {
	path := writeTokenizerFile(t, map[string]int{
		"[CLS]": 101, "[SEP]": 102, "[UNK]": 100,
		"hello": 7592, "world": 2088,
	})
	tok, err := loadTokenizer(path)
	if err != nil {
		t.Fatalf("loadTokenizer: %v", err)
	}

	ids := tok.Tokenize("Hello, World!")
	if len(ids) != 2 || ids[0] != 7592 || ids[1] != 2088 {
		t.Errorf("Tokenize = %v, want [7592 2088]", ids)
	}
}

func TestTokenizeWordPieceSplitting(t *testing.T) {
	path := writeTokenizerFile(t, map[string]int{
		"[CLS]": 101, "[SEP]": 102, "[UNK]": 100,
		"play": 10, "##ing": 11,
	})
	tok, err := loadTokenizer(path)
	if err != nil {
		t.Fatalf("loadTokenizer: %v", err)
	}

	ids := tok.Tokenize("playing")
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 11 {
		t.Errorf("Tokenize = %v, want [10 11]", ids)
	}

	// Entirely unknown characters fall back to [UNK].
	ids = tok.Tokenize("zzz")
	for _, id := range ids {
		if id != 100 {
			t.Errorf("Expected [UNK] ids, got %v", ids)
		}
	}
}

func TestLoadTokenizerRejectsEmptyVocab(t *testing.T) {
	path := writeTokenizerFile(t, map[string]int{})
	if _, err := loadTokenizer(path); err == nil {
		t.Error("Expected error for empty vocabulary")
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("Normalize = %v", v)
	}

	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("Zero vector should pass through unchanged: %v", zero)
	}
}
