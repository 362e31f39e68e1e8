package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github/itish2003/ragqa/models"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const upsertBatchSize = 64

// QdrantOptions configures the gRPC connection.
type QdrantOptions struct {
	Host      string
	Port      int
	APIKey    string
	UseTLS    bool
	Dimension int
}

// Qdrant stores both collections in a Qdrant server over gRPC.
type Qdrant struct {
	client    *qdrant.Client
	names     Names
	dimension int
	logger    *zap.Logger
}

// NewQdrant connects, health-checks, and creates missing collections.
func NewQdrant(ctx context.Context, opts QdrantOptions, names Names, logger *zap.Logger) (*Qdrant, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant: vector dimension must be positive")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(64<<20),
				grpc.MaxCallSendMsgSize(64<<20),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", opts.Host, opts.Port, err)
	}

	q := &Qdrant{client: client, names: names, dimension: opts.Dimension, logger: logger.Named("vectorstore.qdrant")}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}

	for _, c := range []Collection{Docs, Web} {
		if err := q.ensureCollection(ctx, names.For(c)); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	q.logger.Info("qdrant store initialized",
		zap.String("host", opts.Host),
		zap.Int("port", opts.Port),
		zap.Bool("tls", opts.UseTLS),
	)
	return q, nil
}

func (q *Qdrant) Name() string { return "qdrant" }

func (q *Qdrant) Close() error { return q.client.Close() }

func (q *Qdrant) collectionExists(ctx context.Context, name string) (bool, error) {
	info, err := q.client.GetCollectionInfo(ctx, name)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
	return info != nil, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context, name string) error {
	exists, err := q.collectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	q.logger.Info("created collection", zap.String("collection", name), zap.Int("dimension", q.dimension))
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, coll Collection, chunks []models.Chunk) error {
	name := q.names.For(coll)
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, c := range chunks[start:end] {
			if len(c.Embedding) != q.dimension {
				return fmt.Errorf("chunk %d of %s has %d dims, collection %s expects %d",
					c.ChunkIndex, c.Source, len(c.Embedding), name, q.dimension)
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(c)),
				Vectors: qdrant.NewVectors(c.Embedding...),
				Payload: toQdrantPayload(chunkPayload(c)),
			})
		}

		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upserting points to collection %s: %w", name, err)
		}
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, coll Collection, vector []float32, k int) ([]models.RetrievalHit, error) {
	if k <= 0 {
		return nil, nil
	}
	name := q.names.For(coll)
	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("querying collection %s: %w", name, err)
	}

	hits := make([]models.RetrievalHit, 0, len(res))
	for _, p := range res {
		hits = append(hits, hitFromPayload(pointIDString(p.GetId()), fromQdrantPayload(p.GetPayload()), float64(p.GetScore())))
	}
	return hits, nil
}

// DeleteBySource removes every point whose source or filename matches.
func (q *Qdrant) DeleteBySource(ctx context.Context, coll Collection, sources ...string) error {
	var should []*qdrant.Condition
	for _, s := range sources {
		if s == "" {
			continue
		}
		should = append(should, matchKeyword(keySource, s), matchKeyword(keyFilename, s))
	}
	if len(should) == 0 {
		return nil
	}

	name := q.names.For(coll)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Should: should},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting sources from %s: %w", name, err)
	}
	return nil
}

func (q *Qdrant) Count(ctx context.Context, coll Collection) (int, error) {
	name := q.names.For(coll)
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("counting collection %s: %w", name, err)
	}
	return int(n), nil
}

// Clear drops and recreates the collection.
func (q *Qdrant) Clear(ctx context.Context, coll Collection) error {
	name := q.names.For(coll)
	if err := q.client.DeleteCollection(ctx, name); err != nil {
		if st, ok := status.FromError(err); !ok || st.Code() != grpccodes.NotFound {
			return fmt.Errorf("deleting collection %s: %w", name, err)
		}
	}
	return q.ensureCollection(ctx, name)
}

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func toQdrantPayload(m map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		case float64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		case bool:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		}
	}
	return out
}

func fromQdrantPayload(p map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}
