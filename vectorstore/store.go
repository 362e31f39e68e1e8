// Package vectorstore stores chunk vectors in two logical collections and
// answers nearest-neighbour queries over them.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github/itish2003/ragqa/config"
	"github/itish2003/ragqa/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Collection is a logical collection; backends map it to a physical name.
type Collection string

const (
	Docs Collection = "docs"
	Web  Collection = "web"
)

// CollectionFor returns the collection chunks of the given type live in.
func CollectionFor(t models.SourceType) Collection {
	if t == models.SourceWeb {
		return Web
	}
	return Docs
}

// Store is the nearest-neighbour service used by ingestion and retrieval.
// Search returns hits by descending cosine similarity.
type Store interface {
	Upsert(ctx context.Context, coll Collection, chunks []models.Chunk) error
	Search(ctx context.Context, coll Collection, vector []float32, k int) ([]models.RetrievalHit, error)
	DeleteBySource(ctx context.Context, coll Collection, sources ...string) error
	Count(ctx context.Context, coll Collection) (int, error)
	Clear(ctx context.Context, coll Collection) error
	Name() string
	Close() error
}

// Names maps logical collections to physical collection names.
type Names struct {
	Docs string
	Web  string
}

func (n Names) For(c Collection) string {
	if c == Web {
		return n.Web
	}
	return n.Docs
}

// New builds the configured backend and makes sure both collections exist.
func New(ctx context.Context, cfg config.VectorStoreConfig, dimension int, logger *zap.Logger) (Store, error) {
	names := Names{Docs: cfg.DocsCollection, Web: cfg.WebCollection}
	switch cfg.Provider {
	case "memory":
		return NewMemory(cfg.MemoryPath, names, logger)
	case "qdrant":
		return NewQdrant(ctx, QdrantOptions{
			Host:      cfg.QdrantHost,
			Port:      cfg.QdrantPort,
			APIKey:    cfg.QdrantAPIKey.Value(),
			UseTLS:    cfg.QdrantTLS,
			Dimension: dimension,
		}, names, logger)
	case "chroma":
		return NewChroma(ctx, cfg.ChromaURL, names, logger)
	default:
		return nil, fmt.Errorf("unknown vector store provider %q", cfg.Provider)
	}
}

// Payload keys shared by every backend.
const (
	keyText       = "text"
	keySource     = "source"
	keyFilename   = "filename"
	keyChunkIndex = "chunk_index"
	keySourceType = "source_type"
	keyPage       = "page"
)

// PointID derives a stable UUID from a chunk's source and index, so
// re-ingesting the same source overwrites instead of duplicating.
func PointID(c models.Chunk) string {
	if c.ID != "" {
		if _, err := uuid.Parse(c.ID); err == nil {
			return c.ID
		}
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.Source+"#"+strconv.Itoa(c.ChunkIndex))).String()
}

func chunkPayload(c models.Chunk) map[string]any {
	p := map[string]any{
		keyText:       c.Text,
		keySource:     c.Source,
		keyFilename:   c.Filename,
		keyChunkIndex: c.ChunkIndex,
		keySourceType: string(c.SourceType),
	}
	if c.Page > 0 {
		p[keyPage] = c.Page
	}
	return p
}

// hitFromPayload accepts the loosely typed maps different backends return:
// numbers may arrive as int64, float64 or decimal strings.
func hitFromPayload(id string, payload map[string]any, score float64) models.RetrievalHit {
	h := models.RetrievalHit{Score: score}
	h.ID = id
	h.Text = asString(payload[keyText])
	h.Source = asString(payload[keySource])
	h.Filename = asString(payload[keyFilename])
	h.ChunkIndex = asInt(payload[keyChunkIndex])
	h.SourceType = models.SourceType(asString(payload[keySourceType]))
	h.Page = asInt(payload[keyPage])
	if h.Source == "" {
		h.Source = h.Filename
	}
	return h
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case float32:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}
