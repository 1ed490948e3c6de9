package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatmate.app/chatmate/internal/config"
	"chatmate.app/chatmate/internal/events"
	"chatmate.app/chatmate/internal/store"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unreachable")
}
func (failingEmbedder) Dimensions() int   { return 0 }
func (failingEmbedder) ModelName() string { return "failing" }
func (failingEmbedder) Close() error      { return nil }

// keywordEmbedder counts two keywords, giving exact distances.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		out[i] = []float32{float32(strings.Count(t, "apples")), float32(strings.Count(t, "bananas"))}
	}
	return out, nil
}
func (keywordEmbedder) Dimensions() int   { return 2 }
func (keywordEmbedder) ModelName() string { return "keywords" }
func (keywordEmbedder) Close() error      { return nil }

func TestAnswerQuery_ParisEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	room := h.room(t, "r1")
	h.addFile(t, "r1", "Paris is the capital of France.")

	answer, err := h.chat.AnswerQuery(ctx, "r1", "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer.ResponseText)
	assert.True(t, answer.Persisted)
	assert.NotEmpty(t, answer.TurnID)

	assert.Equal(t, BuildPrompt("Paris is the capital of France.", NoHistoryMarker, "What is the capital of France?"), h.gen.lastPrompt())

	turns, err := h.store.ListTurns(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "What is the capital of France?", turns[0].QueryText)
	assert.Equal(t, answer.TurnID, turns[0].ID)
}

func TestAnswerQuery_NoDocumentsMarker(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	room := h.room(t, "empty")

	_, err := h.chat.AnswerQuery(ctx, "empty", "Anything?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.gen.lastPrompt(), "Context: No documents found.\n\nChat History: No chat history found.\n\nQuestion: Anything?"))

	// an existing but empty set reads the same way
	require.NoError(t, h.store.SaveChunkSet(ctx, &store.ChunkSet{RoomID: room.ID}))
	_, err = h.chat.AnswerQuery(ctx, "empty", "Anything else?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.gen.lastPrompt(), "Context: No documents found.\n\n"))
}

func TestAnswerQuery_PromptLayout(t *testing.T) {
	got := BuildPrompt("doc", "hist", "q")
	assert.Equal(t, "Context: doc\n\nChat History: hist\n\nQuestion: q\n\nAdditional Note: "+AnswerStyleNote+"\n\nAnswer:", got)
}

func TestAnswerQuery_HistoryFeedsNextPrompt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.room(t, "r1")

	_, err := h.chat.AnswerQuery(ctx, "r1", "What is the capital of France?")
	require.NoError(t, err)
	_, err = h.chat.AnswerQuery(ctx, "r1", "And of Spain?")
	require.NoError(t, err)

	assert.Contains(t, h.gen.lastPrompt(), "Chat History: What is the capital of France? Paris.\n\nQuestion: And of Spain?")
}

func TestAnswerQuery_GlobalDedupAcrossRooms(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.room(t, "r1")
	r2 := h.room(t, "r2")

	first, err := h.chat.AnswerQuery(ctx, "r1", "Same question?")
	require.NoError(t, err)
	assert.True(t, first.Persisted)

	second, err := h.chat.AnswerQuery(ctx, "r2", "Same question?")
	require.NoError(t, err)
	assert.False(t, second.Persisted)
	assert.Empty(t, second.TurnID)
	assert.Equal(t, "Paris.", second.ResponseText, "the answer is still returned")

	turns, err := h.store.ListTurns(ctx, r2.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAnswerQuery_RoomScopedDedup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, withChatOptions(ChatOptions{DedupScope: store.DedupRoom}))
	h.room(t, "r1")
	h.room(t, "r2")

	a, err := h.chat.AnswerQuery(ctx, "r1", "Same question?")
	require.NoError(t, err)
	b, err := h.chat.AnswerQuery(ctx, "r2", "Same question?")
	require.NoError(t, err)
	c, err := h.chat.AnswerQuery(ctx, "r1", "Same question?")
	require.NoError(t, err)

	assert.True(t, a.Persisted)
	assert.True(t, b.Persisted)
	assert.False(t, c.Persisted)
}

func TestAnswerQuery_GenerationFailureStillPersists(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	room := h.room(t, "r1")
	h.gen.err = errors.New("backend exploded")

	answer, err := h.chat.AnswerQuery(ctx, "r1", "Will this work?")
	require.NoError(t, err)
	assert.Equal(t, GenerationFallback, answer.ResponseText)
	assert.True(t, answer.Persisted)

	turns, err := h.store.ListTurns(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, GenerationFallback, turns[0].ResponseText)
}

func TestAnswerQuery_EmptyGenerationUsesFallback(t *testing.T) {
	h := newHarness(t)
	h.room(t, "r1")
	h.gen.reply = "  \n"

	answer, err := h.chat.AnswerQuery(context.Background(), "r1", "Hello?")
	require.NoError(t, err)
	assert.Equal(t, GenerationFallback, answer.ResponseText)
}

func TestAnswerQuery_GenerationTimeout(t *testing.T) {
	h := newHarness(t, withChatOptions(ChatOptions{GenerationTimeout: 20 * time.Millisecond}))
	h.room(t, "r1")
	h.gen.block = true

	start := time.Now()
	answer, err := h.chat.AnswerQuery(context.Background(), "r1", "Slow?")
	require.NoError(t, err)
	assert.Equal(t, GenerationFallback, answer.ResponseText)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestAnswerQuery_EmbeddingFailureDegradesToMarkers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, withEmbedder(failingEmbedder{}))
	room := h.room(t, "r1")

	require.NoError(t, h.store.SaveChunkSet(ctx, &store.ChunkSet{RoomID: room.ID, Chunks: []store.Chunk{{Text: "some text"}}}))
	_, err := h.store.CreateTurn(ctx, &store.Turn{RoomID: room.ID, QueryText: "earlier", ResponseText: "reply"}, store.DedupGlobal)
	require.NoError(t, err)

	answer, err := h.chat.AnswerQuery(ctx, "r1", "Now?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer.ResponseText)
	assert.Equal(t, BuildPrompt(DocumentErrorMarker, HistoryErrorMarker, "Now?"), h.gen.lastPrompt())
}

func TestAnswerQuery_HistoryRanking(t *testing.T) {
	ctx := context.Background()
	seed := func(h *harness, roomID string) {
		for _, turn := range []store.Turn{
			{RoomID: roomID, QueryText: "Tell me about apples", ResponseText: "Apples are red."},
			{RoomID: roomID, QueryText: "Tell me about bananas", ResponseText: "Bananas are yellow."},
		} {
			_, err := h.store.CreateTurn(ctx, &turn, store.DedupRoom)
			require.NoError(t, err)
		}
	}

	byEmpty := newHarness(t, withTopK(1), withEmbedder(keywordEmbedder{}))
	room := byEmpty.room(t, "r1")
	seed(byEmpty, room.ID)
	_, err := byEmpty.chat.AnswerQuery(ctx, "r1", "Why are bananas yellow?")
	require.NoError(t, err)
	assert.Contains(t, byEmpty.gen.lastPrompt(), "Chat History: Tell me about apples Apples are red.\n\n",
		"an empty ranking query ties every passage, so the first turn wins")

	byQuery := newHarness(t, withTopK(1), withEmbedder(keywordEmbedder{}), withChatOptions(ChatOptions{HistoryRanking: config.HistoryRankingQuery}))
	room = byQuery.room(t, "r1")
	seed(byQuery, room.ID)
	_, err = byQuery.chat.AnswerQuery(ctx, "r1", "Why are bananas yellow?")
	require.NoError(t, err)
	assert.Contains(t, byQuery.gen.lastPrompt(), "Chat History: Tell me about bananas Bananas are yellow.\n\n")
}

func TestAnswerQuery_HistoryWithBlankRejectingBackend(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, withEmbedder(&blankRejectingEmbedder{}))
	room := h.room(t, "r1")
	_, err := h.store.CreateTurn(ctx, &store.Turn{RoomID: room.ID, QueryText: "q1", ResponseText: "answer1"}, store.DedupGlobal)
	require.NoError(t, err)

	_, err = h.chat.AnswerQuery(ctx, "r1", "q2")
	require.NoError(t, err)
	assert.Equal(t, BuildPrompt(NoDocumentsMarker, "q1 answer1", "q2"), h.gen.lastPrompt())
}

func TestAnswerQuery_Errors(t *testing.T) {
	h := newHarness(t)
	h.room(t, "r1")

	_, err := h.chat.AnswerQuery(context.Background(), "missing", "q")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.chat.AnswerQuery(context.Background(), "r1", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, h.gen.prompts)
}

func TestEditQuery_OverwritesTurnWithoutDedup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	room := h.room(t, "r1")

	first, err := h.chat.AnswerQuery(ctx, "r1", "First?")
	require.NoError(t, err)
	_, err = h.chat.AnswerQuery(ctx, "r1", "Second?")
	require.NoError(t, err)

	h.gen.reply = "Edited answer."
	edited, err := h.chat.EditQuery(ctx, "r1", first.TurnID, "Second?")
	require.NoError(t, err)
	assert.Equal(t, "Edited answer.", edited.ResponseText)
	assert.Equal(t, first.TurnID, edited.TurnID)

	turns, err := h.store.ListTurns(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Second?", turns[0].QueryText)
	assert.Equal(t, "Edited answer.", turns[0].ResponseText)
	assert.True(t, strings.Contains(h.gen.lastPrompt(), "Question: Second?"))
}

func TestEditQuery_TurnMustBelongToRoom(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.room(t, "r1")
	h.room(t, "r2")

	answer, err := h.chat.AnswerQuery(ctx, "r1", "Mine?")
	require.NoError(t, err)

	_, err = h.chat.EditQuery(ctx, "r2", answer.TurnID, "Stolen?")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.chat.EditQuery(ctx, "r1", "no-such-turn", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.chat.EditQuery(ctx, "r1", answer.TurnID, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChat_PublishesTurnEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.room(t, "r1")

	answer, err := h.chat.AnswerQuery(ctx, "r1", "q?")
	require.NoError(t, err)
	_, err = h.chat.EditQuery(ctx, "r1", answer.TurnID, "q2?")
	require.NoError(t, err)

	assert.Equal(t, []string{events.TurnCreatedKey("r1"), events.TurnEditedKey("r1")}, h.pub.published())
}

func TestListTurns(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.room(t, "r1")

	for _, q := range []string{"one?", "two?", "three?"} {
		_, err := h.chat.AnswerQuery(ctx, "r1", q)
		require.NoError(t, err)
	}
	turns, err := h.chat.ListTurns(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "one?", turns[0].QueryText)
	assert.Equal(t, "three?", turns[2].QueryText)

	_, err = h.chat.ListTurns(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
