// Package postgres provides a PostgreSQL implementation of index.Index.
// It uses pgx/v5 for connection pooling and the pgvector extension for
// cosine distance search. All rows are scoped by the configured collection.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/index"
)

// Index is a PostgreSQL-backed vector index.
type Index struct {
	pool       *pgxpool.Pool
	collection string
}

// Ensure Index implements index.Index at compile time.
var _ index.Index = (*Index)(nil)

// New connects to PostgreSQL with the given configuration. If
// MigrateOnStart is true, schema migrations are applied on a dedicated
// connection before the pool registers the pgvector types.
func New(ctx context.Context, cfg Config) (*Index, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	if cfg.MigrateOnStart {
		conn, err := pgx.ConnectConfig(ctx, poolCfg.ConnConfig.Copy())
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		err = migrate(ctx, conn)
		conn.Close(ctx)
		if err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Index{pool: pool, collection: cfg.Collection}, nil
}

// Insert writes the batch in a single transaction. A duplicate ID or a
// dimension mismatch rolls back the whole batch.
func (x *Index) Insert(ctx context.Context, chunks []api.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", index.ErrIndex, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var dims int
	err = tx.QueryRow(ctx,
		"SELECT vector_dims(embedding) FROM chunks WHERE collection = $1 LIMIT 1",
		x.collection,
	).Scan(&dims)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: reading collection dimensions: %w", index.ErrIndex, err)
	}

	prepared, _, err := index.Prepare(chunks, dims)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, c := range prepared {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("%w: marshaling metadata: %w", index.ErrIndex, err)
		}
		batch.Queue(`
			INSERT INTO chunks (collection, id, generation, content, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			x.collection, c.ID, int64(c.Metadata.Generation), c.Text, meta, pgvector.NewVector(c.Embedding),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: chunk id already indexed: %w", index.ErrIndex, err)
		}
		return fmt.Errorf("%w: inserting chunks: %w", index.ErrIndex, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing chunks: %w", index.ErrIndex, err)
	}
	return nil
}

// SearchNearest orders by cosine distance. Equal distances are ordered by id.
func (x *Index) SearchNearest(ctx context.Context, vector []float32, k int) ([]index.Match, error) {
	if err := index.ValidateSearch(vector, k); err != nil {
		return nil, err
	}
	return x.nearest(ctx, vector, k, false)
}

// SearchMMR loads fetchK candidates with their embeddings and selects k of
// them by maximal marginal relevance.
func (x *Index) SearchMMR(ctx context.Context, vector []float32, k, fetchK int, lambda float64) ([]index.Match, error) {
	if err := index.ValidateSearch(vector, k); err != nil {
		return nil, err
	}
	if fetchK < k {
		fetchK = k
	}

	candidates, err := x.nearest(ctx, vector, fetchK, true)
	if err != nil {
		return nil, err
	}
	selected := index.SelectMMR(vector, candidates, k, lambda)
	for i := range selected {
		selected[i].Chunk.Embedding = nil
	}
	return selected, nil
}

func (x *Index) nearest(ctx context.Context, vector []float32, limit int, withEmbedding bool) ([]index.Match, error) {
	rows, err := x.pool.Query(ctx, `
		SELECT id, content, metadata, embedding, 1 - (embedding <=> $2) AS similarity
		FROM chunks
		WHERE collection = $1
		ORDER BY embedding <=> $2, id
		LIMIT $3`,
		x.collection, pgvector.NewVector(vector), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: searching chunks: %w", index.ErrIndex, err)
	}
	defer rows.Close()

	matches := make([]index.Match, 0, limit)
	for rows.Next() {
		var (
			m         index.Match
			meta      []byte
			embedding pgvector.Vector
			score     float64
		)
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.Text, &meta, &embedding, &score); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %w", index.ErrIndex, err)
		}
		if err := json.Unmarshal(meta, &m.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("%w: parsing metadata of %s: %w", index.ErrIndex, m.Chunk.ID, err)
		}
		if withEmbedding {
			m.Chunk.Embedding = embedding.Slice()
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading search results: %w", index.ErrIndex, err)
	}

	return matches, nil
}

// Clear deletes every row of the collection.
func (x *Index) Clear(ctx context.Context) error {
	if _, err := x.pool.Exec(ctx, "DELETE FROM chunks WHERE collection = $1", x.collection); err != nil {
		return fmt.Errorf("%w: clearing collection: %w", index.ErrIndex, err)
	}
	return nil
}

// Count returns the number of rows in the collection.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := x.pool.QueryRow(ctx,
		"SELECT count(*) FROM chunks WHERE collection = $1",
		x.collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", index.ErrIndex, err)
	}
	return n, nil
}

// Close releases the connection pool.
func (x *Index) Close() error {
	x.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
