package store

import (
	"context"
	"errors"
)

// ErrDuplicate is returned when a unique key (room name) already exists.
var ErrDuplicate = errors.New("duplicate key")

// Lookups return (nil, nil) when the row does not exist.

type Rooms interface {
	CreateRoom(ctx context.Context, name string) (*Room, error)
	GetRoomByName(ctx context.Context, name string) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

type Documents interface {
	CreateDocument(ctx context.Context, doc *Document) error
	UpdateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, roomID, documentID string) (*Document, error)
	GetDocumentsByIDs(ctx context.Context, roomID string, ids []string) ([]Document, error)
	ListDocuments(ctx context.Context, roomID string) ([]Document, error)
	DeleteDocument(ctx context.Context, roomID, documentID string) error
}

type ChunkSets interface {
	GetChunkSet(ctx context.Context, roomID string) (*ChunkSet, error)
	// SaveChunkSet writes the whole set, creating it if absent.
	SaveChunkSet(ctx context.Context, set *ChunkSet) error
}

type Turns interface {
	// CreateTurn inserts turn unless a turn with the same query text exists in scope.
	// It reports whether the turn was persisted.
	CreateTurn(ctx context.Context, turn *Turn, scope DedupScope) (bool, error)
	GetTurn(ctx context.Context, roomID, turnID string) (*Turn, error)
	ListTurns(ctx context.Context, roomID string) ([]Turn, error)
	UpdateTurn(ctx context.Context, turn *Turn) error
}

type Store interface {
	Rooms
	Documents
	ChunkSets
	Turns
	Close() error
}
