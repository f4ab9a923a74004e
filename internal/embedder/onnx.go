package embedder

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// dimensions matches all-MiniLM-L6-v2.
	dimensions = 384
	// maxSeqLen is the token window the model was exported with.
	maxSeqLen = 128
)

// Config configures the ONNX embedder.
type Config struct {
	// CacheDir holds the downloaded model.onnx and tokenizer.json.
	CacheDir string
	// SharedLibrary is the path to libonnxruntime; empty uses the
	// platform default search path.
	SharedLibrary string
}

// ONNXEmbedder runs all-MiniLM-L6-v2 locally through ONNX Runtime. The
// session is created lazily on the first Embed call, downloading the model
// files into CacheDir if they are not cached yet, so later process starts
// work offline.
type ONNXEmbedder struct {
	cfg Config

	once    sync.Once
	initErr error

	session   *ort.DynamicAdvancedSession
	tokenizer *wordPieceTokenizer
}

// NewONNX creates an ONNX embedder. No model loading happens here.
func NewONNX(cfg Config) *ONNXEmbedder {
	return &ONNXEmbedder{cfg: cfg}
}

// Dimensions returns the embedding vector size.
func (e *ONNXEmbedder) Dimensions() int { return dimensions }

// init loads the tokenizer and creates the inference session exactly once.
func (e *ONNXEmbedder) init() error {
	e.once.Do(func() {
		modelPath, tokenizerPath, err := ensureModelFiles(e.cfg.CacheDir)
		if err != nil {
			e.initErr = fmt.Errorf("fetch model files: %w", err)
			return
		}

		if e.cfg.SharedLibrary != "" {
			ort.SetSharedLibraryPath(e.cfg.SharedLibrary)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			e.initErr = fmt.Errorf("initialize onnxruntime: %w", err)
			return
		}

		tok, err := loadTokenizer(tokenizerPath)
		if err != nil {
			e.initErr = fmt.Errorf("load tokenizer: %w", err)
			return
		}

		session, err := ort.NewDynamicAdvancedSession(modelPath,
			[]string{"input_ids", "attention_mask", "token_type_ids"},
			[]string{"last_hidden_state"},
			nil,
		)
		if err != nil {
			e.initErr = fmt.Errorf("create onnx session: %w", err)
			return
		}

		e.session = session
		e.tokenizer = tok
		log.Printf("embedder: model loaded from %s", filepath.Dir(modelPath))
	})
	return e.initErr
}

// Embed tokenizes text, runs the model and mean-pools the attended token
// states into a normalized 384-dim vector.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.init(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := e.tokenizer.Tokenize(text)
	if len(tokens) > maxSeqLen-2 {
		tokens = tokens[:maxSeqLen-2]
	}

	inputIDs := make([]int64, maxSeqLen)
	attentionMask := make([]int64, maxSeqLen)
	tokenTypeIDs := make([]int64, maxSeqLen)

	inputIDs[0] = int64(e.tokenizer.clsID)
	attentionMask[0] = 1
	for i, t := range tokens {
		inputIDs[i+1] = t
		attentionMask[i+1] = 1
	}
	sepPos := len(tokens) + 1
	inputIDs[sepPos] = int64(e.tokenizer.sepID)
	attentionMask[sepPos] = 1

	shape := ort.NewShape(1, maxSeqLen)
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	return poolHidden(hidden.GetData(), hidden.GetShape(), attentionMask)
}

// poolHidden mean-pools [1, seq, hidden] token states over the attention
// mask and normalizes the result.
func poolHidden(data []float32, shape ort.Shape, mask []int64) ([]float32, error) {
	if len(shape) != 3 || shape[0] != 1 || shape[2] != dimensions {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	seqLen := int(shape[1])

	vec := make([]float32, dimensions)
	var attended float32
	for i := 0; i < seqLen && i < len(mask); i++ {
		if mask[i] == 0 {
			continue
		}
		attended++
		off := i * dimensions
		for j := 0; j < dimensions; j++ {
			vec[j] += data[off+j]
		}
	}
	if attended == 0 {
		return nil, fmt.Errorf("no attended tokens")
	}
	for j := range vec {
		vec[j] /= attended
	}
	return Normalize(vec), nil
}

// Close releases the inference session.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
