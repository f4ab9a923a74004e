package embedder

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
)

const (
	modelURL     = "https://huggingface.co/sentence-transformers/all-MiniLM-L6-v2/resolve/main/onnx/model.onnx"
	tokenizerURL = "https://huggingface.co/sentence-transformers/all-MiniLM-L6-v2/resolve/main/tokenizer.json"
)

// ensureModelFiles returns the cached model and tokenizer paths, downloading
// them into cacheDir on first use.
func ensureModelFiles(cacheDir string) (modelPath, tokenizerPath string, err error) {
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", "", fmt.Errorf("resolve cache dir: %w", err)
		}
		cacheDir = filepath.Join(base, "hippocampus")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create cache dir: %w", err)
	}

	modelPath = filepath.Join(cacheDir, "model.onnx")
	tokenizerPath = filepath.Join(cacheDir, "tokenizer.json")

	if err := fetchIfMissing(modelPath, modelURL); err != nil {
		return "", "", err
	}
	if err := fetchIfMissing(tokenizerPath, tokenizerURL); err != nil {
		return "", "", err
	}
	return modelPath, tokenizerPath, nil
}

// fetchIfMissing downloads url to path unless the file already exists.
// Downloads go through a temp file so a failed transfer never leaves a
// truncated model behind.
func fetchIfMissing(path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	log.Printf("embedder: downloading %s", filepath.Base(path))
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("download %s: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %s", filepath.Base(path), resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
