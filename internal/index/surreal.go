package index

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	// WebSocket upgrade requires HTTP/1.1 semantics which fail under HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string

	// Dimension sizes the HNSW index; must match the embedder.
	Dimension int
}

// Surreal is a SurrealDB-backed vector index with an HNSW cosine
// index over record embeddings. Connections auto-reconnect.
type Surreal struct {
	conn      *rews.Connection[*gorillaws.Connection]
	db        *surrealdb.DB
	cfg       SurrealConfig
	logger    logger.Logger
	dimension int
}

var _ VectorIndex = (*Surreal)(nil)

// NewSurreal connects to SurrealDB and prepares the vector_record
// schema.
func NewSurreal(ctx context.Context, cfg SurrealConfig, log *slog.Logger) (*Surreal, error) {
	var sdkLogger logger.Logger
	if log != nil {
		sdkLogger = logger.New(log.Handler())
	} else {
		sdkLogger = logger.New(slog.Default().Handler())
	}

	// surrealcbor handles SurrealDB custom CBOR tags.
	codec := surrealcbor.New()

	// gorillaws requires the base URL without the /rpc suffix (it adds
	// /rpc internally).
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			ws := gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			})
			return ws, nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	_, err = db.SignIn(ctx, surrealdb.Auth{
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	s := &Surreal{conn: conn, db: db, cfg: cfg, logger: sdkLogger, dimension: cfg.Dimension}
	if err := s.initSchema(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Close closes the SurrealDB connection.
func (s *Surreal) Close(ctx context.Context) error {
	s.logger.Info("closing SurrealDB connection")
	return s.conn.Close(ctx)
}

// initSchema defines the vector_record table and its HNSW index.
func (s *Surreal) initSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		DEFINE TABLE IF NOT EXISTS vector_record SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS namespace ON vector_record TYPE string;
		DEFINE FIELD IF NOT EXISTS chunk_id ON vector_record TYPE string;
		DEFINE FIELD IF NOT EXISTS document_id ON vector_record TYPE string;
		DEFINE FIELD IF NOT EXISTS seq ON vector_record TYPE int;
		DEFINE FIELD IF NOT EXISTS text ON vector_record TYPE string;
		DEFINE FIELD IF NOT EXISTS snippet ON vector_record TYPE string;
		DEFINE FIELD IF NOT EXISTS start_offset ON vector_record TYPE int;
		DEFINE FIELD IF NOT EXISTS end_offset ON vector_record TYPE int;
		DEFINE FIELD IF NOT EXISTS model ON vector_record TYPE string;
		DEFINE FIELD IF NOT EXISTS embedding ON vector_record TYPE array<float>;
		DEFINE FIELD IF NOT EXISTS updated ON vector_record TYPE datetime DEFAULT time::now();

		DEFINE INDEX IF NOT EXISTS vr_namespace ON vector_record FIELDS namespace;
		DEFINE INDEX IF NOT EXISTS vr_document ON vector_record FIELDS namespace, document_id;
		DEFINE INDEX IF NOT EXISTS vr_embedding ON vector_record FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
	`, s.dimension)

	if _, err := surrealdb.Query[any](ctx, s.db, schema, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// surrealRow is the wire shape of stored records.
type surrealRow struct {
	Namespace   string    `json:"namespace"`
	ChunkID     string    `json:"chunk_id"`
	DocumentID  string    `json:"document_id"`
	Seq         int       `json:"seq"`
	Text        string    `json:"text"`
	Snippet     string    `json:"snippet"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Model       string    `json:"model"`
	Embedding   []float32 `json:"embedding"`
	Score       float64   `json:"score,omitempty"`
}

func (s *Surreal) Upsert(ctx context.Context, namespace string, records []Record) error {
	if err := ValidateNamespace(namespace); err != nil {
		return err
	}

	// Record id is the chunk id, so re-ingesting a chunk overwrites
	// its previous vector instead of duplicating it.
	const sql = `
		UPSERT type::record("vector_record", $id) SET
			namespace = $namespace,
			chunk_id = $chunk_id,
			document_id = $document_id,
			seq = $seq,
			text = $text,
			snippet = $snippet,
			start_offset = $start_offset,
			end_offset = $end_offset,
			model = $model,
			embedding = $embedding,
			updated = time::now()
	`

	for _, rec := range records {
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("%w: record %s has %d, index wants %d",
				ErrDimensionMismatch, rec.ID, len(rec.Vector), s.dimension)
		}

		vars := map[string]any{
			"id":           rec.ID,
			"namespace":    namespace,
			"chunk_id":     rec.Meta.ChunkID,
			"document_id":  rec.Meta.DocumentID,
			"seq":          rec.Meta.Seq,
			"text":         rec.Meta.Text,
			"snippet":      rec.Meta.Snippet,
			"start_offset": rec.Meta.StartOffset,
			"end_offset":   rec.Meta.EndOffset,
			"model":        rec.Meta.Model,
			"embedding":    rec.Vector,
		}
		if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
			return fmt.Errorf("%w: upsert %s: %v", ErrUnavailable, rec.ID, err)
		}
	}
	return nil
}

func (s *Surreal) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Scored, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, index wants %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}
	if k <= 0 {
		return []Scored{}, nil
	}

	// KNN via the HNSW index (ef=40 for recall), re-scored with exact
	// cosine similarity for the ranked result.
	sql := fmt.Sprintf(`
		SELECT namespace, chunk_id, document_id, seq, text, snippet,
			start_offset, end_offset, model, embedding,
			vector::similarity::cosine(embedding, $vec) AS score
		FROM vector_record
		WHERE namespace = $ns AND embedding <|%d,40|> $vec
		ORDER BY score DESC
		LIMIT $k
	`, k)

	vars := map[string]any{"ns": namespace, "vec": vector, "k": k}
	results, err := surrealdb.Query[[]surrealRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}

	var rows []surrealRow
	if results != nil && len(*results) > 0 {
		rows = (*results)[0].Result
	}

	scored := make([]Scored, 0, len(rows))
	for _, row := range rows {
		scored = append(scored, Scored{
			Record: Record{
				ID:     row.ChunkID,
				Vector: row.Embedding,
				Meta: Meta{
					ChunkID:     row.ChunkID,
					DocumentID:  row.DocumentID,
					Seq:         row.Seq,
					Snippet:     row.Snippet,
					Text:        row.Text,
					StartOffset: row.StartOffset,
					EndOffset:   row.EndOffset,
					Model:       row.Model,
				},
			},
			Score: row.Score,
		})
	}
	return scored, nil
}

func (s *Surreal) DeleteDocument(ctx context.Context, namespace, documentID string) (int, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return 0, err
	}

	const sql = `
		SELECT VALUE count() FROM vector_record
		WHERE namespace = $ns AND document_id = $doc GROUP ALL;
		DELETE vector_record WHERE namespace = $ns AND document_id = $doc;
	`
	vars := map[string]any{"ns": namespace, "doc": documentID}
	results, err := surrealdb.Query[any](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("%w: delete document %s: %v", ErrUnavailable, documentID, err)
	}

	removed := 0
	if results != nil && len(*results) > 0 {
		if counts, ok := (*results)[0].Result.([]any); ok && len(counts) > 0 {
			if n, ok := counts[0].(uint64); ok {
				removed = int(n)
			} else if n, ok := counts[0].(int64); ok {
				removed = int(n)
			} else if n, ok := counts[0].(float64); ok {
				removed = int(n)
			}
		}
	}
	return removed, nil
}

func (s *Surreal) Count(ctx context.Context, namespace string) (int, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return 0, err
	}

	const sql = `SELECT VALUE count() FROM vector_record WHERE namespace = $ns GROUP ALL`
	results, err := surrealdb.Query[[]int](ctx, s.db, sql, map[string]any{"ns": namespace})
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrUnavailable, err)
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return (*results)[0].Result[0], nil
	}
	return 0, nil
}
