package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatmate.app/chatmate/internal/config"
	"chatmate.app/chatmate/internal/events"
	"chatmate.app/chatmate/internal/generation"
	"chatmate.app/chatmate/internal/logger"
	"chatmate.app/chatmate/internal/store"
)

const DefaultGenerationTimeout = 60 * time.Second

type ChatOptions struct {
	DedupScope        store.DedupScope
	HistoryRanking    string // config.HistoryRankingEmpty or config.HistoryRankingQuery
	GenerationTimeout time.Duration
}

// Answer is the outcome of one query. TurnID is empty when the turn was not
// persisted because an identical query already exists.
type Answer struct {
	ResponseText string `json:"response_text"`
	TurnID       string `json:"turn_id,omitempty"`
	Persisted    bool   `json:"persisted"`
}

type EditResult struct {
	ResponseText string `json:"response_text"`
	TurnID       string `json:"turn_id"`
}

type ChatService struct {
	store     store.Store
	retriever *Retriever
	generator generation.Generator
	publisher events.Publisher
	opts      ChatOptions
}

func NewChatService(st store.Store, r *Retriever, gen generation.Generator, pub events.Publisher, opts ChatOptions) *ChatService {
	if opts.DedupScope == "" {
		opts.DedupScope = store.DedupGlobal
	}
	if opts.HistoryRanking == "" {
		opts.HistoryRanking = config.HistoryRankingEmpty
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = DefaultGenerationTimeout
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &ChatService{store: st, retriever: r, generator: gen, publisher: pub, opts: opts}
}

// AnswerQuery retrieves document and history context for query, generates an
// answer and records the turn unless the dedup rule rejects it. Retrieval and
// generation failures degrade to fixed texts; only lookup, input and storage
// errors are returned.
func (s *ChatService) AnswerQuery(ctx context.Context, roomName, query string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrInvalidInput)
	}
	room, err := getRoom(ctx, s.store, roomName)
	if err != nil {
		return nil, err
	}

	response := s.respond(ctx, room, query)

	turn := &store.Turn{RoomID: room.ID, QueryText: query, ResponseText: response}
	persisted, err := s.store.CreateTurn(ctx, turn, s.opts.DedupScope)
	if err != nil {
		return nil, fmt.Errorf("failed to store turn: %w", err)
	}

	answer := &Answer{ResponseText: response, Persisted: persisted}
	if persisted {
		answer.TurnID = turn.ID
	} else {
		logger.Infof("Room %s: query already answered (%s dedup), turn not stored", roomName, s.opts.DedupScope)
	}

	events.Emit(ctx, s.publisher, events.TurnCreatedKey(roomName), events.TurnEvent{
		Room:      roomName,
		TurnID:    answer.TurnID,
		QueryText: query,
		Persisted: persisted,
		At:        time.Now().UTC(),
	})
	return answer, nil
}

// EditQuery answers newQuery again and overwrites the turn's query and response.
// The dedup rule is not applied.
func (s *ChatService) EditQuery(ctx context.Context, roomName, turnID, newQuery string) (*EditResult, error) {
	if strings.TrimSpace(newQuery) == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrInvalidInput)
	}
	room, err := getRoom(ctx, s.store, roomName)
	if err != nil {
		return nil, err
	}
	turn, err := s.store.GetTurn(ctx, room.ID, turnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turn: %w", err)
	}
	if turn == nil {
		return nil, fmt.Errorf("turn %q in room %q: %w", turnID, roomName, ErrNotFound)
	}

	turn.ResponseText = s.respond(ctx, room, newQuery)
	turn.QueryText = newQuery
	if err := s.store.UpdateTurn(ctx, turn); err != nil {
		return nil, fmt.Errorf("failed to update turn: %w", err)
	}

	events.Emit(ctx, s.publisher, events.TurnEditedKey(roomName), events.TurnEvent{
		Room:      roomName,
		TurnID:    turn.ID,
		QueryText: newQuery,
		Persisted: true,
		At:        time.Now().UTC(),
	})
	return &EditResult{ResponseText: turn.ResponseText, TurnID: turn.ID}, nil
}

func (s *ChatService) ListTurns(ctx context.Context, roomName string) ([]store.Turn, error) {
	room, err := getRoom(ctx, s.store, roomName)
	if err != nil {
		return nil, err
	}
	turns, err := s.store.ListTurns(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	return turns, nil
}

func (s *ChatService) respond(ctx context.Context, room *store.Room, query string) string {
	documentContext := s.documentContext(ctx, room, query)
	historyContext := s.historyContext(ctx, room, query)
	return s.generate(ctx, room.Name, BuildPrompt(documentContext, historyContext, query))
}

func (s *ChatService) documentContext(ctx context.Context, room *store.Room, query string) string {
	set, err := s.store.GetChunkSet(ctx, room.ID)
	if err != nil {
		logger.Warnf("Room %s: failed to load chunk set: %v", room.Name, err)
		return DocumentErrorMarker
	}
	if set == nil || len(set.Chunks) == 0 {
		return NoDocumentsMarker
	}

	passages, err := s.retriever.Retrieve(ctx, set.Texts(), query)
	if err != nil {
		logger.Warnf("Room %s: document retrieval failed: %v", room.Name, err)
		return DocumentErrorMarker
	}
	if len(passages) == 0 {
		return NoDocumentsMarker
	}
	return strings.Join(passages, "\n")
}

func (s *ChatService) historyContext(ctx context.Context, room *store.Room, query string) string {
	turns, err := s.store.ListTurns(ctx, room.ID)
	if err != nil {
		logger.Warnf("Room %s: failed to load history: %v", room.Name, err)
		return HistoryErrorMarker
	}
	if len(turns) == 0 {
		return NoHistoryMarker
	}

	texts := make([]string, len(turns))
	for i, t := range turns {
		texts[i] = historyText(t)
	}
	rankBy := ""
	if s.opts.HistoryRanking == config.HistoryRankingQuery {
		rankBy = query
	}

	passages, err := s.retriever.Retrieve(ctx, texts, rankBy)
	if err != nil {
		logger.Warnf("Room %s: history retrieval failed: %v", room.Name, err)
		return HistoryErrorMarker
	}
	if len(passages) == 0 {
		return NoHistoryMarker
	}
	return strings.Join(passages, "\n")
}

func (s *ChatService) generate(ctx context.Context, roomName, prompt string) string {
	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerationTimeout)
	defer cancel()

	text, err := s.generator.Generate(genCtx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = generation.ErrEmptyResponse
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", s.opts.GenerationTimeout, err)
		}
		logger.Warnf("Room %s: %v", roomName, fmt.Errorf("%w: %v", ErrGenerationFailure, err))
		return GenerationFallback
	}
	return text
}
