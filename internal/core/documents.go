package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"chatmate.app/chatmate/internal/logger"
	"chatmate.app/chatmate/internal/store"
)

// Uploader copies a local file into object storage.
type Uploader interface {
	Upload(ctx context.Context, key, path string) error
}

type NewDocument struct {
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	Location string `json:"location"`
	// Upload stores a local file in object storage and registers the object instead.
	Upload bool `json:"upload,omitempty"`
}

type DocumentUpdate struct {
	Title    *string `json:"title,omitempty"`
	Location *string `json:"location,omitempty"`
}

// DocumentService is the room and document bookkeeping that drives chunk refreshes.
type DocumentService struct {
	store    store.Store
	chunks   *ChunkService
	uploader Uploader
}

func NewDocumentService(st store.Store, chunks *ChunkService, uploader Uploader) *DocumentService {
	return &DocumentService{store: st, chunks: chunks, uploader: uploader}
}

func (s *DocumentService) CreateRoom(ctx context.Context, name string) (*store.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: room name is required", ErrInvalidInput)
	}
	room, err := s.store.CreateRoom(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("room %q: %w", name, ErrConflict)
		}
		return nil, err
	}
	logger.Infof("Created room %s (%s)", room.Name, room.ID)
	return room, nil
}

func (s *DocumentService) ListRooms(ctx context.Context) ([]store.Room, error) {
	return s.store.ListRooms(ctx)
}

// DeleteRoom removes the room with its documents, chunk set and turns.
func (s *DocumentService) DeleteRoom(ctx context.Context, name string) error {
	room, err := getRoom(ctx, s.store, name)
	if err != nil {
		return err
	}
	return s.store.DeleteRoom(ctx, room.ID)
}

// AddDocument registers a document and refreshes the room's chunks with it.
func (s *DocumentService) AddDocument(ctx context.Context, roomName string, in NewDocument) (*store.Document, *RefreshResult, error) {
	room, err := getRoom(ctx, s.store, roomName)
	if err != nil {
		return nil, nil, err
	}

	doc := &store.Document{
		ID:       uuid.NewString(),
		RoomID:   room.ID,
		Title:    strings.TrimSpace(in.Title),
		Kind:     in.Kind,
		Location: strings.TrimSpace(in.Location),
	}
	if doc.Kind == "" {
		doc.Kind = store.DocumentKindFile
	}
	if err := normalizeLocation(doc); err != nil {
		return nil, nil, err
	}
	if doc.Title == "" {
		doc.Title = filepath.Base(doc.Location)
	}

	if in.Upload {
		if doc.Kind != store.DocumentKindFile {
			return nil, nil, fmt.Errorf("%w: only files can be uploaded", ErrInvalidInput)
		}
		if s.uploader == nil {
			return nil, nil, fmt.Errorf("%w: no object storage configured", ErrInvalidInput)
		}
		key := fmt.Sprintf("rooms/%s/%s/%s", room.ID, doc.ID, filepath.Base(doc.Location))
		if err := s.uploader.Upload(ctx, key, doc.Location); err != nil {
			return nil, nil, err
		}
		doc.Kind = store.DocumentKindObject
		doc.Location = key
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, nil, err
	}
	result, err := s.chunks.Refresh(ctx, roomName, []string{doc.ID}, false)
	if err != nil {
		return doc, nil, err
	}
	return doc, result, nil
}

// UpdateDocument changes title and/or location and refreshes the room's chunks with it.
func (s *DocumentService) UpdateDocument(ctx context.Context, roomName, documentID string, upd DocumentUpdate) (*store.Document, *RefreshResult, error) {
	room, doc, err := s.getDocument(ctx, roomName, documentID)
	if err != nil {
		return nil, nil, err
	}
	if upd.Title != nil {
		doc.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Location != nil {
		doc.Location = strings.TrimSpace(*upd.Location)
		if err := normalizeLocation(doc); err != nil {
			return nil, nil, err
		}
	}
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return nil, nil, err
	}
	result, err := s.chunks.Refresh(ctx, room.Name, []string{doc.ID}, false)
	if err != nil {
		return doc, nil, err
	}
	return doc, result, nil
}

func (s *DocumentService) ListDocuments(ctx context.Context, roomName string) ([]store.Document, error) {
	room, err := getRoom(ctx, s.store, roomName)
	if err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, room.ID)
}

func (s *DocumentService) GetDocument(ctx context.Context, roomName, documentID string) (*store.Document, error) {
	_, doc, err := s.getDocument(ctx, roomName, documentID)
	return doc, err
}

// RemoveDocument subtracts the document's chunks from the room and then deletes it.
func (s *DocumentService) RemoveDocument(ctx context.Context, roomName, documentID string) (*RefreshResult, error) {
	room, doc, err := s.getDocument(ctx, roomName, documentID)
	if err != nil {
		return nil, err
	}
	result, err := s.chunks.Refresh(ctx, room.Name, []string{doc.ID}, true)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteDocument(ctx, room.ID, doc.ID); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *DocumentService) getDocument(ctx context.Context, roomName, documentID string) (*store.Room, *store.Document, error) {
	room, err := getRoom(ctx, s.store, roomName)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.store.GetDocument(ctx, room.ID, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("document %q in room %q: %w", documentID, roomName, ErrNotFound)
	}
	return room, doc, nil
}

func normalizeLocation(doc *store.Document) error {
	if doc.Location == "" {
		return fmt.Errorf("%w: document location is required", ErrInvalidInput)
	}
	switch doc.Kind {
	case store.DocumentKindFile:
		abs, err := filepath.Abs(doc.Location)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		doc.Location = abs
	case store.DocumentKindLink:
		if !strings.HasPrefix(doc.Location, "http://") && !strings.HasPrefix(doc.Location, "https://") {
			return fmt.Errorf("%w: link must be an http(s) URL", ErrInvalidInput)
		}
	case store.DocumentKindObject:
	default:
		return fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, doc.Kind)
	}
	return nil
}
