package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"videoDigest/config"
	"videoDigest/core"
)

const milvusCollection = "video_segments"

// MilvusVectorStore keeps segment vectors in a Milvus collection behind an
// HNSW index over cosine similarity. Connection settings come from
// MILVUS_ADDR, MILVUS_USERNAME, MILVUS_PASSWORD and MILVUS_API_KEY.
type MilvusVectorStore struct {
	c   client.Client
	emb embedder
	dim int
}

func NewMilvusVectorStore(ctx context.Context, cfg *config.Config, emb embedder) (*MilvusVectorStore, error) {
	addr := os.Getenv("MILVUS_ADDR")
	if addr == "" {
		addr = "localhost:19530"
	}
	c, err := client.NewClient(ctx, client.Config{
		Address:  addr,
		Username: os.Getenv("MILVUS_USERNAME"),
		Password: os.Getenv("MILVUS_PASSWORD"),
		APIKey:   os.Getenv("MILVUS_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	s := &MilvusVectorStore{c: c, emb: emb, dim: embedDim(cfg)}
	if err := s.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusVectorStore) ensureCollection(ctx context.Context) error {
	has, err := s.c.HasCollection(ctx, milvusCollection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !has {
		schema := entity.NewSchema().WithName(milvusCollection).
			WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256)).
			WithField(entity.NewField().WithName("start_sec").WithDataType(entity.FieldTypeDouble)).
			WithField(entity.NewField().WithName("end_sec").WithDataType(entity.FieldTypeDouble)).
			WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
			WithField(entity.NewField().WithName("summary").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
			WithField(entity.NewField().WithName("frame_path").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
			WithField(entity.NewField().WithName("embedding").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))
		if err := s.c.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
		if err != nil {
			return fmt.Errorf("build index params: %w", err)
		}
		if err := s.c.CreateIndex(ctx, milvusCollection, "embedding", idx, false); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	if err := s.c.LoadCollection(ctx, milvusCollection, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *MilvusVectorStore) Upsert(ctx context.Context, videoID string, items []core.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}
	vecs, err := s.emb.embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	// Replace rows from an earlier run of the same video.
	expr := fmt.Sprintf(`video_id == "%s"`, videoID)
	if err := s.c.Delete(ctx, milvusCollection, "", expr); err != nil {
		config.Log.WithError(err).Debug("milvus pre-delete failed")
	}

	ids := make([]string, len(items))
	videoIDs := make([]string, len(items))
	starts := make([]float64, len(items))
	ends := make([]float64, len(items))
	textCol := make([]string, len(items))
	summaries := make([]string, len(items))
	framePaths := make([]string, len(items))
	for i, it := range items {
		ids[i] = fmt.Sprintf("%s_%04d", videoID, i)
		videoIDs[i] = videoID
		starts[i] = it.Start
		ends[i] = it.End
		textCol[i] = it.Text
		summaries[i] = it.Summary
		framePaths[i] = it.FramePath
	}
	_, err = s.c.Insert(ctx, milvusCollection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnDouble("start_sec", starts),
		entity.NewColumnDouble("end_sec", ends),
		entity.NewColumnVarChar("text", textCol),
		entity.NewColumnVarChar("summary", summaries),
		entity.NewColumnVarChar("frame_path", framePaths),
		entity.NewColumnFloatVector("embedding", s.dim, vecs),
	)
	if err != nil {
		return 0, fmt.Errorf("insert rows: %w", err)
	}
	if err := s.c.Flush(ctx, milvusCollection, false); err != nil {
		config.Log.WithError(err).Debug("milvus flush failed")
	}
	return len(items), nil
}

func (s *MilvusVectorStore) Search(ctx context.Context, videoID, query string, topK int) ([]core.Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	vecs, err := s.emb.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	sp, err := entity.NewIndexHNSWSearchParam(74)
	if err != nil {
		return nil, fmt.Errorf("build search params: %w", err)
	}
	expr := fmt.Sprintf(`video_id == "%s"`, videoID)
	results, err := s.c.Search(ctx, milvusCollection, nil, expr,
		[]string{"start_sec", "end_sec", "text", "summary", "frame_path"},
		[]entity.Vector{entity.FloatVector(vecs[0])},
		"embedding", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var hits []core.Hit
	for _, rs := range results {
		starts := doubleColumn(rs.Fields, "start_sec")
		ends := doubleColumn(rs.Fields, "end_sec")
		textVals := varcharColumn(rs.Fields, "text")
		summaries := varcharColumn(rs.Fields, "summary")
		framePaths := varcharColumn(rs.Fields, "frame_path")
		for i := 0; i < rs.ResultCount; i++ {
			hit := core.Hit{Score: float64(rs.Scores[i])}
			if i < len(starts) {
				hit.Start = starts[i]
			}
			if i < len(ends) {
				hit.End = ends[i]
			}
			if i < len(textVals) {
				hit.Text = textVals[i]
			}
			if i < len(summaries) {
				hit.Summary = summaries[i]
			}
			if i < len(framePaths) {
				hit.FramePath = framePaths[i]
			}
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

func doubleColumn(fields []entity.Column, name string) []float64 {
	for _, c := range fields {
		if c.Name() == name {
			if col, ok := c.(*entity.ColumnDouble); ok {
				return col.Data()
			}
		}
	}
	return nil
}

func varcharColumn(fields []entity.Column, name string) []string {
	for _, c := range fields {
		if c.Name() == name {
			if col, ok := c.(*entity.ColumnVarChar); ok {
				return col.Data()
			}
		}
	}
	return nil
}

func (s *MilvusVectorStore) Close() error {
	return s.c.Close()
}
