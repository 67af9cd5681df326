package graph

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite. Vector similarity search loads
// the candidate kind's embeddings and scores them in the application layer
// with cosine similarity, which is suitable for smaller experience bases
// (< 10K nodes). Use PostgresStore with pgvector beyond that.
type SQLiteStore struct {
	db  *sql.DB
	dim int
}

// NewSQLiteStore opens a SQLite-backed store at the given path (":memory:"
// for an in-memory database). dim fixes the embedding dimension every vector
// in the store must carry; pass 0 for DefaultEmbeddingDim.
func NewSQLiteStore(ctx context.Context, dbPath string, dim int) (*SQLiteStore, error) {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}

	// Enable WAL mode and foreign keys for better performance and data integrity
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection also
	// keeps ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db, dim: dim}, nil
}

// InitSchema creates the entity and relationship tables if they don't exist.
// This should be called after creating a new SQLiteStore.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			is_successful INTEGER,
			reasoning TEXT NOT NULL DEFAULT '',
			embedding BLOB,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);

		CREATE TABLE IF NOT EXISTS relationships (
			rel_type TEXT NOT NULL,
			from_id TEXT NOT NULL REFERENCES entities(id),
			to_id TEXT NOT NULL REFERENCES entities(id),
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (rel_type, from_id, to_id)
		);

		CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(rel_type, to_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// CreateEntity persists a new entity row under its kind.
func (s *SQLiteStore) CreateEntity(ctx context.Context, e *Entity) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("invalid entity kind %q", e.Kind)
	}
	if e.Embedding.Valid && e.Embedding.Dim() != s.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dim, e.Embedding.Dim())
	}

	var embeddingBlob []byte
	if e.Embedding.Valid {
		embeddingBlob = encodeVector(e.Embedding.Values)
	}

	var successful any
	if e.Successful != nil {
		successful = *e.Successful
	}

	query := `
		INSERT INTO entities (id, kind, name, description, is_successful, reasoning, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, string(e.Kind), e.Name, e.Description, successful, e.Reasoning, embeddingBlob)
	if err != nil {
		return fmt.Errorf("failed to create %s entity: %w", e.Kind, err)
	}

	return nil
}

// GetEntity returns the entity with the given id, without its embedding.
func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, name, description, is_successful, reasoning, created_at
		FROM entities
		WHERE id = ?
	`, id)

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return e, nil
}

// ListByKind returns all entities of one kind in creation order.
func (s *SQLiteStore) ListByKind(ctx context.Context, kind Kind) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, description, is_successful, reasoning, created_at
		FROM entities
		WHERE kind = ?
		ORDER BY rowid
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s entities: %w", kind, err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// CreateRelationship persists a directed edge after verifying both endpoints
// exist. The endpoint check and the insert run in one transaction so a
// concurrent wipe cannot leave a dangling edge.
func (s *SQLiteStore) CreateRelationship(ctx context.Context, r Relationship) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE id IN (?, ?)`,
		r.FromID, r.ToID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check relationship endpoints: %w", err)
	}
	if count != 2 {
		return fmt.Errorf("%w: %s relationship %s -> %s", ErrNotFound, r.Type, r.FromID, r.ToID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO relationships (rel_type, from_id, to_id)
		VALUES (?, ?, ?)
	`, string(r.Type), r.FromID, r.ToID)
	if err != nil {
		return fmt.Errorf("failed to create %s relationship: %w", r.Type, err)
	}

	return tx.Commit()
}

// matchWithScore is an internal type for sorting matches by similarity score.
type matchWithScore struct {
	Match
	score float32
}

// SearchSimilar finds up to k entities of the given kind by cosine similarity.
// All embeddings of the kind are loaded and scored in application memory;
// rows are visited in creation order so equal scores keep a stable order.
func (s *SQLiteStore) SearchSimilar(ctx context.Context, kind Kind, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dim, len(vector))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, description, is_successful, embedding, created_at
		FROM entities
		WHERE kind = ? AND embedding IS NOT NULL
		ORDER BY rowid
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s embeddings: %w", kind, err)
	}
	defer rows.Close()

	var results []matchWithScore
	for rows.Next() {
		var m Match
		var kindStr string
		var successful sql.NullBool
		var embeddingBlob []byte
		var createdAtStr sql.NullString
		if err := rows.Scan(&m.ID, &kindStr, &m.Name, &m.Description, &successful, &embeddingBlob, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Kind = Kind(kindStr)
		if successful.Valid {
			v := successful.Bool
			m.Successful = &v
		}
		if createdAtStr.Valid {
			m.CreatedAt, _ = parseTimestamp(createdAtStr.String)
		}

		stored := decodeVector(embeddingBlob)
		if len(stored) != len(vector) {
			continue
		}
		m.Score = cosineSimilarity(vector, stored)
		results = append(results, matchWithScore{Match: m, score: m.Score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s embeddings: %w", kind, err)
	}

	// Stable sort keeps creation order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	topK := min(k, len(results))
	matches := make([]Match, topK)
	for i := range topK {
		matches[i] = results[i].Match
	}

	return matches, nil
}

// IssuesForAttempts traverses CAUSES edges from the given attempts in edge
// creation order.
func (s *SQLiteStore) IssuesForAttempts(ctx context.Context, attemptIDs []string) ([]AttemptIssue, error) {
	if len(attemptIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT r.from_id, e.id, e.description
		FROM relationships r
		JOIN entities e ON e.id = r.to_id
		WHERE r.rel_type = ? AND r.from_id IN (%s)
		ORDER BY r.rowid
	`, placeholders(len(attemptIDs)))

	args := make([]any, 0, len(attemptIDs)+1)
	args = append(args, string(RelCauses))
	for _, id := range attemptIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse CAUSES edges: %w", err)
	}
	defer rows.Close()

	var links []AttemptIssue
	for rows.Next() {
		var l AttemptIssue
		if err := rows.Scan(&l.AttemptID, &l.IssueID, &l.Description); err != nil {
			return nil, fmt.Errorf("failed to scan CAUSES row: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating CAUSES rows: %w", err)
	}

	return links, nil
}

// SemanticLinksForIssues traverses ABSTRACTS_TO edges from the given issues
// in edge creation order.
func (s *SQLiteStore) SemanticLinksForIssues(ctx context.Context, issueIDs []string) ([]SemanticLink, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT r.from_id, e.id, e.name, e.description
		FROM relationships r
		JOIN entities e ON e.id = r.to_id
		WHERE r.rel_type = ? AND r.from_id IN (%s)
		ORDER BY r.rowid
	`, placeholders(len(issueIDs)))

	args := make([]any, 0, len(issueIDs)+1)
	args = append(args, string(RelAbstractsTo))
	for _, id := range issueIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse ABSTRACTS_TO edges: %w", err)
	}
	defer rows.Close()

	var links []SemanticLink
	for rows.Next() {
		var l SemanticLink
		if err := rows.Scan(&l.IssueID, &l.SemanticID, &l.Name, &l.Description); err != nil {
			return nil, fmt.Errorf("failed to scan ABSTRACTS_TO row: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ABSTRACTS_TO rows: %w", err)
	}

	return links, nil
}

// AttemptsForPolicy returns every attempt with a SATISFIES edge to the policy.
func (s *SQLiteStore) AttemptsForPolicy(ctx context.Context, policyID string) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.kind, e.name, e.description, e.is_successful, e.reasoning, e.created_at
		FROM relationships r
		JOIN entities e ON e.id = r.from_id
		WHERE r.rel_type = ? AND r.to_id = ?
		ORDER BY r.rowid
	`, string(RelSatisfies), policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts for policy: %w", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// FixesForIssue returns every fix with a RESOLVES edge to the issue.
func (s *SQLiteStore) FixesForIssue(ctx context.Context, issueID string) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.kind, e.name, e.description, e.is_successful, e.reasoning, e.created_at
		FROM relationships r
		JOIN entities e ON e.id = r.from_id
		WHERE r.rel_type = ? AND r.to_id = ?
		ORDER BY r.rowid
	`, string(RelResolves), issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixes for issue: %w", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// Wipe deletes all nodes and edges. Safe to call on an empty store.
func (s *SQLiteStore) Wipe(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships`); err != nil {
		return fmt.Errorf("failed to delete relationships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("failed to delete entities: %w", err)
	}

	return tx.Commit()
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var kindStr string
	var successful sql.NullBool
	var createdAtStr sql.NullString

	err := row.Scan(&e.ID, &kindStr, &e.Name, &e.Description, &successful, &e.Reasoning, &createdAtStr)
	if err != nil {
		return nil, err
	}

	e.Kind = Kind(kindStr)
	if successful.Valid {
		v := successful.Bool
		e.Successful = &v
	}
	if createdAtStr.Valid {
		e.CreatedAt, _ = parseTimestamp(createdAtStr.String)
	}

	return &e, nil
}

func collectEntities(rows *sql.Rows) ([]Entity, error) {
	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return entities, nil
}

// placeholders returns "?, ?, ..." with n placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// encodeVector converts a float32 slice to a byte slice for storage.
// Each float32 is encoded as 4 bytes in little-endian format.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector converts a byte slice back to a float32 slice.
// Each 4 bytes are decoded as one float32 in little-endian format.
func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// cosineSimilarity calculates the cosine similarity between two vectors.
// The result is in range [-1, 1], where 1 means identical direction,
// 0 means orthogonal, and -1 means opposite direction.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// parseTimestamp parses a SQLite timestamp string to time.Time.
// SQLite stores timestamps as TEXT in ISO8601/RFC3339 format.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
