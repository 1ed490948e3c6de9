package core

import (
	"context"
	"fmt"
	"time"

	"chatmate.app/chatmate/internal/config"
	"chatmate.app/chatmate/internal/events"
	"chatmate.app/chatmate/internal/logger"
	"chatmate.app/chatmate/internal/store"
)

// Extractor produces the single chunk of text for a document.
type Extractor interface {
	Extract(ctx context.Context, doc store.Document) (store.Chunk, error)
}

type RefreshResult struct {
	// Extracted and Failed list document ids by extraction outcome.
	Extracted []string `json:"extracted"`
	Failed    []string `json:"failed"`
	Chunks    int      `json:"chunks"`
	Saved     bool     `json:"saved"`
}

// ChunkService keeps each room's Chunk Set in step with its documents.
type ChunkService struct {
	store     store.Store
	extractor Extractor
	mode      string
	publisher events.Publisher
	locks     *roomLocks
}

func NewChunkService(st store.Store, ex Extractor, mode string, pub events.Publisher) *ChunkService {
	if mode == "" {
		mode = config.ChunkSetModeFlat
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &ChunkService{store: st, extractor: ex, mode: mode, publisher: pub, locks: newRoomLocks()}
}

// Refresh re-derives the chunks of documentIDs and folds them into the room's Chunk Set.
//
// With del false the set is replaced by the new chunks (flat mode) or only the
// refreshed documents' entries are replaced (per_document mode). With del true every
// cached chunk whose text equals a new chunk is removed, and in per_document mode
// every chunk of the listed documents as well; the set is saved only if it shrank.
// A document that fails extraction contributes nothing and does not fail the call.
func (s *ChunkService) Refresh(ctx context.Context, roomName string, documentIDs []string, del bool) (*RefreshResult, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one document id is required", ErrInvalidInput)
	}
	room, err := getRoom(ctx, s.store, roomName)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(room.ID)
	defer unlock()

	docs, err := s.store.GetDocumentsByIDs(ctx, room.ID, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	byID := make(map[string]store.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	result := &RefreshResult{}
	var candidates []store.Chunk
	for _, id := range dedupIDs(documentIDs) {
		doc, ok := byID[id]
		if !ok {
			logger.Warnf("Room %s: document %s not found, skipping", roomName, id)
			result.Failed = append(result.Failed, id)
			continue
		}
		chunk, err := s.extractor.Extract(ctx, doc)
		if err != nil {
			logger.Warnf("Room %s: %v", roomName, fmt.Errorf("%w: document %s: %v", ErrExtractionFailure, id, err))
			result.Failed = append(result.Failed, id)
			continue
		}
		chunk.DocumentID = doc.ID
		candidates = append(candidates, chunk)
		result.Extracted = append(result.Extracted, id)
	}

	existing, err := s.store.GetChunkSet(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk set: %w", err)
	}

	var next *store.ChunkSet
	if del {
		next = s.subtract(existing, candidates, documentIDs)
	} else {
		next = s.replace(room.ID, existing, candidates)
	}

	if next != nil {
		if err := s.store.SaveChunkSet(ctx, next); err != nil {
			return nil, fmt.Errorf("failed to save chunk set: %w", err)
		}
		result.Saved = true
		result.Chunks = len(next.Chunks)
	} else if existing != nil {
		result.Chunks = len(existing.Chunks)
	}

	logger.Infof("Room %s: refreshed %d document(s), delete=%t, %d failed, %d chunk(s) cached",
		roomName, len(documentIDs), del, len(result.Failed), result.Chunks)
	events.Emit(ctx, s.publisher, events.ChunksRefreshedKey(roomName), events.ChunksRefreshedEvent{
		Room:        roomName,
		DocumentIDs: documentIDs,
		Delete:      del,
		Chunks:      result.Chunks,
		Saved:       result.Saved,
		At:          time.Now().UTC(),
	})
	return result, nil
}

func (s *ChunkService) replace(roomID string, existing *store.ChunkSet, candidates []store.Chunk) *store.ChunkSet {
	if existing == nil {
		return &store.ChunkSet{RoomID: roomID, Chunks: candidates}
	}
	next := *existing
	if s.mode != config.ChunkSetModePerDocument {
		next.Chunks = candidates
		return &next
	}

	refreshed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		refreshed[c.DocumentID] = true
	}
	kept := make([]store.Chunk, 0, len(existing.Chunks)+len(candidates))
	for _, c := range existing.Chunks {
		if !refreshed[c.DocumentID] {
			kept = append(kept, c)
		}
	}
	next.Chunks = append(kept, candidates...)
	return &next
}

// subtract returns nil when nothing changed.
func (s *ChunkService) subtract(existing *store.ChunkSet, candidates []store.Chunk, documentIDs []string) *store.ChunkSet {
	if existing == nil {
		return nil
	}
	texts := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		texts[c.Text] = true
	}
	removedDocs := make(map[string]bool)
	if s.mode == config.ChunkSetModePerDocument {
		for _, id := range documentIDs {
			removedDocs[id] = true
		}
	}

	kept := make([]store.Chunk, 0, len(existing.Chunks))
	for _, c := range existing.Chunks {
		if texts[c.Text] || (c.DocumentID != "" && removedDocs[c.DocumentID]) {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == len(existing.Chunks) {
		return nil
	}
	next := *existing
	next.Chunks = kept
	return &next
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
