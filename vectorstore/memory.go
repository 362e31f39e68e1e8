package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github/itish2003/ragqa/models"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

var errNoEmbeddingFunc = errors.New("chunks must carry precomputed embeddings")

// Memory is an in-process store backed by chromem-go, optionally persisted
// to disk. It is the default for local runs and tests.
type Memory struct {
	db     *chromem.DB
	names  Names
	logger *zap.Logger
}

// NewMemory opens a persistent DB at path, or a purely in-memory one when
// path is empty.
func NewMemory(path string, names Names, logger *zap.Logger) (*Memory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	m := &Memory{db: db, names: names, logger: logger.Named("vectorstore.memory")}
	for _, c := range []Collection{Docs, Web} {
		if _, err := m.collection(c); err != nil {
			return nil, err
		}
	}
	m.logger.Info("chromem store initialized", zap.String("path", path))
	return m, nil
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Close() error { return nil }

func (m *Memory) collection(c Collection) (*chromem.Collection, error) {
	name := m.names.For(c)
	col, err := m.db.GetOrCreateCollection(name, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", name, err)
	}
	return col, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (m *Memory) Upsert(ctx context.Context, coll Collection, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	col, err := m.collection(coll)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %d of %s: %w", c.ChunkIndex, c.Source, errNoEmbeddingFunc)
		}
		meta := map[string]string{
			keySource:     c.Source,
			keyFilename:   c.Filename,
			keyChunkIndex: strconv.Itoa(c.ChunkIndex),
			keySourceType: string(c.SourceType),
		}
		if c.Page > 0 {
			meta[keyPage] = strconv.Itoa(c.Page)
		}
		docs[i] = chromem.Document{
			ID:        PointID(c),
			Content:   c.Text,
			Metadata:  meta,
			Embedding: c.Embedding,
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents to %s: %w", m.names.For(coll), err)
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, coll Collection, vector []float32, k int) ([]models.RetrievalHit, error) {
	col, err := m.collection(coll)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= doc count, and a zero vector cannot be
	// normalized for cosine similarity.
	count := col.Count()
	if count == 0 || k <= 0 || isZeroVector(vector) {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", m.names.For(coll), err)
	}

	hits := make([]models.RetrievalHit, 0, len(results))
	for _, r := range results {
		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[keyText] = r.Content
		hits = append(hits, hitFromPayload(r.ID, payload, float64(r.Similarity)))
	}
	return hits, nil
}

func (m *Memory) DeleteBySource(ctx context.Context, coll Collection, sources ...string) error {
	col, err := m.collection(coll)
	if err != nil {
		return err
	}
	for _, s := range sources {
		if s == "" {
			continue
		}
		if err := col.Delete(ctx, map[string]string{keySource: s}, nil); err != nil {
			return fmt.Errorf("deleting source %s from %s: %w", s, m.names.For(coll), err)
		}
	}
	return nil
}

func (m *Memory) Count(_ context.Context, coll Collection) (int, error) {
	col, err := m.collection(coll)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

func (m *Memory) Clear(_ context.Context, coll Collection) error {
	name := m.names.For(coll)
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	_, err := m.collection(coll)
	return err
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
