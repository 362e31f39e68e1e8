package services

import (
	"context"
	"strings"
	"sync"

	"github/itish2003/ragqa/llm"
	"github/itish2003/ragqa/models"
	"github/itish2003/ragqa/vectorstore"
)

// letterEmbedder maps text to its a-z letter counts, so similar words
// land near each other without a model.
type letterEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *letterEmbedder) Dimension() int { return 26 }

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v, nil
}

func (e *letterEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakeStore struct {
	hits     map[vectorstore.Collection][]models.RetrievalHit
	searches int
}

func (f *fakeStore) Upsert(context.Context, vectorstore.Collection, []models.Chunk) error {
	return nil
}

func (f *fakeStore) Search(_ context.Context, coll vectorstore.Collection, _ []float32, _ int) ([]models.RetrievalHit, error) {
	f.searches++
	return append([]models.RetrievalHit(nil), f.hits[coll]...), nil
}

func (f *fakeStore) DeleteBySource(context.Context, vectorstore.Collection, ...string) error {
	return nil
}
func (f *fakeStore) Count(context.Context, vectorstore.Collection) (int, error) { return 0, nil }
func (f *fakeStore) Clear(context.Context, vectorstore.Collection) error { return nil }
func (f *fakeStore) Name() string { return "fake" }
func (f *fakeStore) Close() error { return nil }

type call struct {
	prompt  string
	context string
}

// fakeGenerator replays replies in order; the last one repeats.
type fakeGenerator struct {
	replies [][]string
	err     error
	calls   []call
}

func (g *fakeGenerator) next() []string {
	if len(g.replies) == 0 {
		return nil
	}
	i := len(g.calls) - 1
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	return g.replies[i]
}

func (g *fakeGenerator) GenerateStream(_ context.Context, prompt, contextText string) llm.Stream {
	g.calls = append(g.calls, call{prompt: prompt, context: contextText})
	return llm.NewSliceStream(g.err, g.next()...)
}

func (g *fakeGenerator) Generate(_ context.Context, prompt, contextText string) (string, error) {
	g.calls = append(g.calls, call{prompt: prompt, context: contextText})
	return strings.Join(g.next(), ""), g.err
}

type staticRelevance bool

func (s staticRelevance) ClassifyRelevance(context.Context, string, string) bool { return bool(s) }

func docHit(source, text string, score float64, page int) models.RetrievalHit {
	return models.RetrievalHit{
		Chunk: models.Chunk{
			Text:       text,
			Source:     source,
			Filename:   source[strings.LastIndex(source, "/")+1:],
			SourceType: models.SourceDoc,
			Page:       page,
		},
		Score: score,
	}
}
