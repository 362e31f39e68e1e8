package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github/itish2003/ragqa/models"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"go.uber.org/zap"
)

// Chroma stores both collections in a Chroma server over its HTTP API.
type Chroma struct {
	client      chromago.Client
	collections map[Collection]chromago.Collection
	names       Names
	logger      *zap.Logger
}

// NewChroma connects and gets or creates both collections with cosine space.
func NewChroma(ctx context.Context, baseURL string, names Names, logger *zap.Logger) (*Chroma, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	c := &Chroma{
		client:      client,
		collections: make(map[Collection]chromago.Collection, 2),
		names:       names,
		logger:      logger.Named("vectorstore.chroma"),
	}
	for _, coll := range []Collection{Docs, Web} {
		col, err := c.getOrCreate(ctx, coll)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		c.collections[coll] = col
	}
	return c, nil
}

func (c *Chroma) getOrCreate(ctx context.Context, coll Collection) (chromago.Collection, error) {
	name := c.names.For(coll)
	col, err := c.client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "document QA "+string(coll)+" chunks"),
				chromago.NewStringAttribute("hnsw:space", "cosine"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection %s: %w", name, err)
	}
	c.logger.Info("collection ready", zap.String("collection", name))
	return col, nil
}

func (c *Chroma) Name() string { return "chroma" }

func (c *Chroma) Close() error { return c.client.Close() }

func (c *Chroma) Upsert(ctx context.Context, coll Collection, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]chromago.DocumentID, len(chunks))
	texts := make([]string, len(chunks))
	embs := make([]embeddings.Embedding, len(chunks))
	metas := make([]chromago.DocumentMetadata, len(chunks))
	for i, ch := range chunks {
		ids[i] = chromago.DocumentID(PointID(ch))
		texts[i] = ch.Text
		embs[i] = embeddings.NewEmbeddingFromFloat32(ch.Embedding)
		attrs := []*chromago.MetaAttribute{
			chromago.NewStringAttribute(keySource, ch.Source),
			chromago.NewStringAttribute(keyFilename, ch.Filename),
			chromago.NewIntAttribute(keyChunkIndex, int64(ch.ChunkIndex)),
			chromago.NewStringAttribute(keySourceType, string(ch.SourceType)),
		}
		if ch.Page > 0 {
			attrs = append(attrs, chromago.NewIntAttribute(keyPage, int64(ch.Page)))
		}
		metas[i] = chromago.NewDocumentMetadata(attrs...)
	}

	err := c.collections[coll].Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert records to chroma collection %s: %w", c.names.For(coll), err)
	}
	return nil
}

func (c *Chroma) Search(ctx context.Context, coll Collection, vector []float32, k int) ([]models.RetrievalHit, error) {
	col := c.collections[coll]
	n, err := col.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chroma collection %s: %w", c.names.For(coll), err)
	}
	count := int(n)
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma collection %s: %w", c.names.For(coll), err)
	}

	idGroups := results.GetIDGroups()
	docGroups := results.GetDocumentsGroups()
	metaGroups := results.GetMetadatasGroups()
	distGroups := results.GetDistancesGroups()
	if len(docGroups) == 0 {
		return nil, nil
	}

	hits := make([]models.RetrievalHit, 0, len(docGroups[0]))
	for i, doc := range docGroups[0] {
		payload := metadataMap(metaGroups, i, c.logger)
		payload[keyText] = doc.ContentString()

		score := 0.0
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			// cosine distance -> similarity
			score = 1 - float64(distGroups[0][i])
		}
		var id string
		if len(idGroups) > 0 && i < len(idGroups[0]) {
			id = string(idGroups[0][i])
		}
		hits = append(hits, hitFromPayload(id, payload, score))
	}
	return hits, nil
}

// metadataMap converts chroma metadata through JSON; DocumentMetadata has
// no public accessor for its full key set.
func metadataMap(groups []chromago.DocumentMetadatas, i int, logger *zap.Logger) map[string]any {
	out := make(map[string]any)
	if len(groups) == 0 || i >= len(groups[0]) || groups[0][i] == nil {
		return out
	}
	raw, err := json.Marshal(groups[0][i])
	if err != nil {
		logger.Warn("could not marshal chroma metadata", zap.Error(err))
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Warn("could not unmarshal chroma metadata", zap.Error(err))
		return make(map[string]any)
	}
	return out
}

func (c *Chroma) DeleteBySource(ctx context.Context, coll Collection, sources ...string) error {
	for _, s := range sources {
		if s == "" {
			continue
		}
		err := c.collections[coll].Delete(ctx, chromago.WithWhereDelete(chromago.EqString(keySource, s)))
		if err != nil {
			return fmt.Errorf("failed to delete %s from chroma collection %s: %w", s, c.names.For(coll), err)
		}
	}
	return nil
}

func (c *Chroma) Count(ctx context.Context, coll Collection) (int, error) {
	n, err := c.collections[coll].Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection %s: %w", c.names.For(coll), err)
	}
	return int(n), nil
}

// Clear deletes every record; each collection holds a single source type.
func (c *Chroma) Clear(ctx context.Context, coll Collection) error {
	st := models.SourceDoc
	if coll == Web {
		st = models.SourceWeb
	}
	err := c.collections[coll].Delete(ctx, chromago.WithWhereDelete(chromago.EqString(keySourceType, string(st))))
	if err != nil {
		return fmt.Errorf("failed to clear chroma collection %s: %w", c.names.For(coll), err)
	}
	return nil
}
