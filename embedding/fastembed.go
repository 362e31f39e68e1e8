//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

var fastembedModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"fast-all-MiniLM-L6-v2":                  fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
}

var fastembedDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.AllMiniLML6V2: 384,
	fastembed.BGESmallENV15: 384,
	fastembed.BGEBaseENV15:  768,
}

// FastEmbed runs an ONNX sentence-embedding model in process.
type FastEmbed struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	dimension int
}

func NewFastEmbed(model, cacheDir string) (*FastEmbed, error) {
	m, ok := fastembedModels[model]
	if !ok {
		return nil, fmt.Errorf("unsupported fastembed model %q", model)
	}
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                m,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}
	return &FastEmbed{model: flagEmbed, dimension: fastembedDimensions[m]}, nil
}

func (f *FastEmbed) Dimension() int { return f.dimension }

func (f *FastEmbed) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("fastembed query embed: %w", err)
	}
	return v, nil
}

// Close releases the ONNX session.
func (f *FastEmbed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.model == nil {
		return nil
	}
	err := f.model.Destroy()
	f.model = nil
	return err
}
