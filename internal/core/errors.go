package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatmate.app/chatmate/internal/store"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrExtractionFailure = errors.New("extraction failure")
	ErrEmbeddingFailure  = errors.New("embedding failure")
	ErrGenerationFailure = errors.New("generation failure")
)

func getRoom(ctx context.Context, rooms store.Rooms, name string) (*store.Room, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: room name is required", ErrInvalidInput)
	}
	room, err := rooms.GetRoomByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return nil, fmt.Errorf("room %q: %w", name, ErrNotFound)
	}
	return room, nil
}
