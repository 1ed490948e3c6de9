package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the multi-instance alternative to SQLiteStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms (id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('file', 'link', 'object')),
			location TEXT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS chunk_sets (
			room_id TEXT PRIMARY KEY REFERENCES rooms (id) ON DELETE CASCADE,
			chunks JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms (id) ON DELETE CASCADE,
			query_text TEXT NOT NULL,
			response_text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
			seq BIGSERIAL
		);

		CREATE INDEX IF NOT EXISTS idx_turns_query_text ON turns (query_text);
		CREATE INDEX IF NOT EXISTS idx_turns_room ON turns (room_id, seq);
		CREATE INDEX IF NOT EXISTS idx_documents_room ON documents (room_id);
	`)
	return err
}

func (s *PostgresStore) CreateRoom(ctx context.Context, name string) (*Room, error) {
	room := &Room{ID: uuid.NewString(), Name: name}
	err := s.pool.QueryRow(ctx, `INSERT INTO rooms (id, name) VALUES ($1, $2) RETURNING created_at`, room.ID, name).Scan(&room.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("room %q: %w", name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert room: %w", err)
	}
	return room, nil
}

func (s *PostgresStore) GetRoomByName(ctx context.Context, name string) (*Room, error) {
	var room Room
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM rooms WHERE name = $1`, name).Scan(&room.ID, &room.Name, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM rooms ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, roomID string) error {
	// documents, chunk_sets and turns cascade
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, room_id, title, kind, location) VALUES ($1, $2, $3, $4, $5)
		RETURNING uploaded_at
	`, doc.ID, doc.RoomID, doc.Title, doc.Kind, doc.Location).Scan(&doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc *Document) error {
	tag, err := s.pool.Exec(ctx, `UPDATE documents SET title = $1, kind = $2, location = $3 WHERE id = $4 AND room_id = $5`,
		doc.Title, doc.Kind, doc.Location, doc.ID, doc.RoomID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document not found, not updated")
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, roomID, documentID string) (*Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx, `SELECT id, room_id, title, kind, location, uploaded_at FROM documents WHERE id = $1 AND room_id = $2`, documentID, roomID).
		Scan(&doc.ID, &doc.RoomID, &doc.Title, &doc.Kind, &doc.Location, &doc.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *PostgresStore) GetDocumentsByIDs(ctx context.Context, roomID string, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryDocuments(ctx, `
		SELECT id, room_id, title, kind, location, uploaded_at FROM documents
		WHERE room_id = $1 AND id = ANY($2) ORDER BY uploaded_at ASC, id ASC
	`, roomID, ids)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, roomID string) ([]Document, error) {
	return s.queryDocuments(ctx, `
		SELECT id, room_id, title, kind, location, uploaded_at FROM documents
		WHERE room_id = $1 ORDER BY uploaded_at ASC, id ASC
	`, roomID)
}

func (s *PostgresStore) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.RoomID, &doc.Title, &doc.Kind, &doc.Location, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, roomID, documentID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND room_id = $2`, documentID, roomID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChunkSet(ctx context.Context, roomID string) (*ChunkSet, error) {
	var set ChunkSet
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT room_id, chunks, created_at, updated_at FROM chunk_sets WHERE room_id = $1`, roomID).
		Scan(&set.RoomID, &raw, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chunk set: %w", err)
	}
	if err := json.Unmarshal(raw, &set.Chunks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunks for room %s: %w", roomID, err)
	}
	return &set, nil
}

func (s *PostgresStore) SaveChunkSet(ctx context.Context, set *ChunkSet) error {
	if set.Chunks == nil {
		set.Chunks = []Chunk{}
	}
	raw, err := json.Marshal(set.Chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO chunk_sets (room_id, chunks) VALUES ($1, $2)
		ON CONFLICT (room_id) DO UPDATE SET chunks = EXCLUDED.chunks, updated_at = now()
		RETURNING created_at, updated_at
	`, set.RoomID, raw).Scan(&set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save chunk set: %w", err)
	}
	return nil
}

// maxTurnInsertAttempts bounds retries of the serializable dedup transaction.
const maxTurnInsertAttempts = 5

func (s *PostgresStore) CreateTurn(ctx context.Context, turn *Turn, scope DedupScope) (bool, error) {
	var err error
	for attempt := 1; attempt <= maxTurnInsertAttempts; attempt++ {
		var persisted bool
		persisted, err = s.createTurn(ctx, turn, scope)
		if !isSerializationFailure(err) {
			return persisted, err
		}
		// a concurrent insert won; the next attempt sees its row
	}
	return false, fmt.Errorf("failed to insert turn after %d attempts: %w", maxTurnInsertAttempts, err)
}

func (s *PostgresStore) createTurn(ctx context.Context, turn *Turn, scope DedupScope) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return false, fmt.Errorf("failed to begin turn insert: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if scope == DedupRoom {
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM turns WHERE query_text = $1 AND room_id = $2)`, turn.QueryText, turn.RoomID).Scan(&exists)
	} else {
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM turns WHERE query_text = $1)`, turn.QueryText).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate turn: %w", err)
	}
	if exists {
		return false, nil
	}

	id := uuid.NewString()
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO turns (id, room_id, query_text, response_text) VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, id, turn.RoomID, turn.QueryText, turn.ResponseText).Scan(&createdAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert turn: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit turn insert: %w", err)
	}
	turn.ID = id
	turn.CreatedAt = createdAt
	return true, nil
}

// isSerializationFailure reports SQLSTATE 40001, raised when two serializable
// dedup checks race on the same query text.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func (s *PostgresStore) GetTurn(ctx context.Context, roomID, turnID string) (*Turn, error) {
	var turn Turn
	err := s.pool.QueryRow(ctx, `SELECT id, room_id, query_text, response_text, created_at FROM turns WHERE id = $1 AND room_id = $2`, turnID, roomID).
		Scan(&turn.ID, &turn.RoomID, &turn.QueryText, &turn.ResponseText, &turn.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get turn: %w", err)
	}
	return &turn, nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, roomID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, room_id, query_text, response_text, created_at FROM turns WHERE room_id = $1 ORDER BY seq ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.ID, &turn.RoomID, &turn.QueryText, &turn.ResponseText, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func (s *PostgresStore) UpdateTurn(ctx context.Context, turn *Turn) error {
	tag, err := s.pool.Exec(ctx, `UPDATE turns SET query_text = $1, response_text = $2 WHERE id = $3 AND room_id = $4`,
		turn.QueryText, turn.ResponseText, turn.ID, turn.RoomID)
	if err != nil {
		return fmt.Errorf("failed to update turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("turn not found, not updated")
	}
	return nil
}
