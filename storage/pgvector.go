package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"videoDigest/config"
	"videoDigest/core"
)

// PgVectorStore persists segment vectors in Postgres via the pgvector
// extension. A single connection is shared, so calls are serialized with a
// mutex.
type PgVectorStore struct {
	mu   sync.Mutex
	conn *pgx.Conn
	emb  embedder
	dim  int
}

func NewPgVectorStore(ctx context.Context, cfg *config.Config, emb embedder) (*PgVectorStore, error) {
	conn, err := pgx.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PgVectorStore{conn: conn, emb: emb, dim: embedDim(cfg)}
	if err := s.ensureSchema(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureSchema(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS video_segments (
	id TEXT PRIMARY KEY,
	video_id TEXT NOT NULL,
	start_sec DOUBLE PRECISION NOT NULL,
	end_sec DOUBLE PRECISION NOT NULL,
	text TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	frame_path TEXT NOT NULL DEFAULT '',
	embedding vector(%d)
)`, s.dim)
	if _, err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create video_segments: %w", err)
	}
	if _, err := s.conn.Exec(ctx, `CREATE INDEX IF NOT EXISTS video_segments_video_id_idx ON video_segments (video_id)`); err != nil {
		return fmt.Errorf("create video_id index: %w", err)
	}
	if _, err := s.conn.Exec(ctx, `CREATE INDEX IF NOT EXISTS video_segments_embedding_idx ON video_segments USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`); err != nil {
		config.Log.WithError(err).Warn("ivfflat index not created, queries fall back to sequential scan")
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, videoID string, items []core.Item) (int, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i, it := range items {
		_, err := s.conn.Exec(ctx, `INSERT INTO video_segments (id, video_id, start_sec, end_sec, text, summary, frame_path, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	start_sec = EXCLUDED.start_sec,
	end_sec = EXCLUDED.end_sec,
	text = EXCLUDED.text,
	summary = EXCLUDED.summary,
	frame_path = EXCLUDED.frame_path,
	embedding = EXCLUDED.embedding`,
			fmt.Sprintf("%s_%04d", videoID, i), videoID, it.Start, it.End, it.Text, it.Summary, it.FramePath,
			pgvector.NewVector(vecs[i]))
		if err != nil {
			return count, fmt.Errorf("upsert row %d: %w", i, err)
		}
		count++
	}
	return count, nil
}

func (s *PgVectorStore) Search(ctx context.Context, videoID, query string, topK int) ([]core.Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	vecs, err := s.emb.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	qv := pgvector.NewVector(vecs[0])

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.conn.Query(ctx, `SELECT start_sec, end_sec, text, summary, frame_path, 1 - (embedding <=> $1) AS score
FROM video_segments
WHERE video_id = $2
ORDER BY embedding <=> $1
LIMIT $3`, qv, videoID, topK)
	if err != nil {
		return nil, fmt.Errorf("query video_segments: %w", err)
	}
	defer rows.Close()

	var hits []core.Hit
	for rows.Next() {
		var h core.Hit
		if err := rows.Scan(&h.Start, &h.End, &h.Text, &h.Summary, &h.FramePath, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgVectorStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close(ctx)
}
