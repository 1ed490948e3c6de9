package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; transactions below never touch s.db while open.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS rooms (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT UNIQUE NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS documents (
        id TEXT PRIMARY KEY, -- UUID
        room_id TEXT NOT NULL,
        title TEXT NOT NULL,
        kind TEXT NOT NULL CHECK (kind IN ('file', 'link', 'object')),
        location TEXT NOT NULL,
        uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (room_id) REFERENCES rooms (id)
    );

    CREATE TABLE IF NOT EXISTS chunk_sets (
        room_id TEXT PRIMARY KEY,
        chunks_json TEXT NOT NULL, -- JSON array of {"text": ...}
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (room_id) REFERENCES rooms (id)
    );

    CREATE TABLE IF NOT EXISTS turns (
        id TEXT PRIMARY KEY, -- UUID
        room_id TEXT NOT NULL,
        query_text TEXT NOT NULL,
        response_text TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (room_id) REFERENCES rooms (id)
    );

    CREATE INDEX IF NOT EXISTS idx_turns_query_text ON turns (query_text);
    CREATE INDEX IF NOT EXISTS idx_turns_room ON turns (room_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_documents_room ON documents (room_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Room methods
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string) (*Room, error) {
	room := &Room{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx, "INSERT INTO rooms (id, name, created_at) VALUES (?, ?, ?)", room.ID, room.Name, room.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("room %q: %w", name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert room: %w", err)
	}
	return room, nil
}

func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*Room, error) {
	var room Room
	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM rooms WHERE name = ?", name).Scan(&room.ID, &room.Name, &room.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (s *SQLiteStore) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM rooms ORDER BY name ASC")
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

func (s *SQLiteStore) DeleteRoom(ctx context.Context, roomID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin room delete: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM turns WHERE room_id = ?",
		"DELETE FROM chunk_sets WHERE room_id = ?",
		"DELETE FROM documents WHERE room_id = ?",
		"DELETE FROM rooms WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, roomID); err != nil {
			return fmt.Errorf("failed to delete room data: %w", err)
		}
	}
	return tx.Commit()
}

// Document methods
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.UploadedAt = time.Now().UTC()

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO documents (id, room_id, title, kind, location, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare document insert: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.ExecContext(ctx, doc.ID, doc.RoomID, doc.Title, doc.Kind, doc.Location, doc.UploadedAt); err != nil {
		return fmt.Errorf("failed to execute document insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateDocument(ctx context.Context, doc *Document) error {
	res, err := s.db.ExecContext(ctx, "UPDATE documents SET title = ?, kind = ?, location = ? WHERE id = ? AND room_id = ?",
		doc.Title, doc.Kind, doc.Location, doc.ID, doc.RoomID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("document not found, not updated")
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, roomID, documentID string) (*Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx, "SELECT id, room_id, title, kind, location, uploaded_at FROM documents WHERE id = ? AND room_id = ?", documentID, roomID).
		Scan(&doc.ID, &doc.RoomID, &doc.Title, &doc.Kind, &doc.Location, &doc.UploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *SQLiteStore) GetDocumentsByIDs(ctx context.Context, roomID string, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, roomID)
	for _, id := range ids {
		args = append(args, id)
	}
	query := "SELECT id, room_id, title, kind, location, uploaded_at FROM documents WHERE room_id = ? AND id IN (?" +
		strings.Repeat(", ?", len(ids)-1) + ") ORDER BY uploaded_at ASC, rowid ASC"
	return s.queryDocuments(ctx, query, args...)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, roomID string) ([]Document, error) {
	return s.queryDocuments(ctx, "SELECT id, room_id, title, kind, location, uploaded_at FROM documents WHERE room_id = ? ORDER BY uploaded_at ASC, rowid ASC", roomID)
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) DeleteDocument(ctx context.Context, roomID, documentID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ? AND room_id = ?", documentID, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// ChunkSet methods
func (s *SQLiteStore) GetChunkSet(ctx context.Context, roomID string) (*ChunkSet, error) {
	var set ChunkSet
	var chunksJSON string
	err := s.db.QueryRowContext(ctx, "SELECT room_id, chunks_json, created_at, updated_at FROM chunk_sets WHERE room_id = ?", roomID).
		Scan(&set.RoomID, &chunksJSON, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chunk set: %w", err)
	}
	if err := json.Unmarshal([]byte(chunksJSON), &set.Chunks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunks for room %s: %w", roomID, err)
	}
	return &set, nil
}

func (s *SQLiteStore) SaveChunkSet(ctx context.Context, set *ChunkSet) error {
	if set.Chunks == nil {
		set.Chunks = []Chunk{}
	}
	chunksJSON, err := json.Marshal(set.Chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}
	now := time.Now().UTC()
	if set.CreatedAt.IsZero() {
		set.CreatedAt = now
	}
	set.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO chunk_sets (room_id, chunks_json, created_at, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT (room_id) DO UPDATE SET chunks_json = excluded.chunks_json, updated_at = excluded.updated_at
    `, set.RoomID, string(chunksJSON), set.CreatedAt, set.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save chunk set: %w", err)
	}
	return nil
}

// Turn methods
func (s *SQLiteStore) CreateTurn(ctx context.Context, turn *Turn, scope DedupScope) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin turn insert: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if scope == DedupRoom {
		err = tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM turns WHERE query_text = ? AND room_id = ?)", turn.QueryText, turn.RoomID).Scan(&exists)
	} else {
		err = tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM turns WHERE query_text = ?)", turn.QueryText).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate turn: %w", err)
	}
	if exists {
		return false, nil
	}

	turn.ID = uuid.NewString()
	turn.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, "INSERT INTO turns (id, room_id, query_text, response_text, created_at) VALUES (?, ?, ?, ?, ?)",
		turn.ID, turn.RoomID, turn.QueryText, turn.ResponseText, turn.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to execute turn insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit turn insert: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) GetTurn(ctx context.Context, roomID, turnID string) (*Turn, error) {
	var turn Turn
	err := s.db.QueryRowContext(ctx, "SELECT id, room_id, query_text, response_text, created_at FROM turns WHERE id = ? AND room_id = ?", turnID, roomID).
		Scan(&turn.ID, &turn.RoomID, &turn.QueryText, &turn.ResponseText, &turn.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get turn: %w", err)
	}
	return &turn, nil
}

func (s *SQLiteStore) ListTurns(ctx context.Context, roomID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, room_id, query_text, response_text, created_at FROM turns WHERE room_id = ? ORDER BY created_at ASC, rowid ASC", roomID)
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

func (s *SQLiteStore) UpdateTurn(ctx context.Context, turn *Turn) error {
	stmt, err := s.db.PrepareContext(ctx, "UPDATE turns SET query_text = ?, response_text = ? WHERE id = ? AND room_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare turn update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, turn.QueryText, turn.ResponseText, turn.ID, turn.RoomID)
	if err != nil {
		return fmt.Errorf("failed to execute turn update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("turn not found, not updated")
	}
	return nil
}
