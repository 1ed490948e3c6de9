package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chatmate.app/chatmate/internal/config"
	"chatmate.app/chatmate/internal/embedding"
	"chatmate.app/chatmate/internal/extract"
	"chatmate.app/chatmate/internal/segment"
	"chatmate.app/chatmate/internal/store"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
	block   bool
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	reply, err, block := g.reply, g.err, g.block
	g.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func (g *fakeGenerator) ModelName() string { return "fake" }
func (g *fakeGenerator) Close() error      { return nil }

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type harness struct {
	store    store.Store
	docs     *DocumentService
	chunks   *ChunkService
	chat     *ChatService
	gen      *fakeGenerator
	pub      *recordingPublisher
	indexDir string
}

type harnessOption func(*harnessSettings)

type harnessSettings struct {
	mode     string
	chat     ChatOptions
	embedder embedding.Embedder
	topK     int
}

func withMode(mode string) harnessOption {
	return func(s *harnessSettings) { s.mode = mode }
}

func withChatOptions(opts ChatOptions) harnessOption {
	return func(s *harnessSettings) { s.chat = opts }
}

func withEmbedder(e embedding.Embedder) harnessOption {
	return func(s *harnessSettings) { s.embedder = e }
}

func withTopK(k int) harnessOption {
	return func(s *harnessSettings) { s.topK = k }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	settings := harnessSettings{
		mode:     config.ChunkSetModeFlat,
		embedder: embedding.NewHashEmbedder(128),
		topK:     5,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chatmate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{
		store:    st,
		gen:      &fakeGenerator{reply: "Paris."},
		pub:      &recordingPublisher{},
		indexDir: t.TempDir(),
	}
	retriever := NewRetriever(settings.embedder, segment.New(), settings.topK, h.indexDir)
	h.chunks = NewChunkService(st, extract.NewService(), settings.mode, h.pub)
	h.docs = NewDocumentService(st, h.chunks, nil)
	h.chat = NewChatService(st, retriever, h.gen, h.pub, settings.chat)
	return h
}

func (h *harness) room(t *testing.T, name string) *store.Room {
	t.Helper()
	room, err := h.docs.CreateRoom(context.Background(), name)
	require.NoError(t, err)
	return room
}

func (h *harness) addFile(t *testing.T, room, text string) *store.Document {
	t.Helper()
	doc, _, err := h.docs.AddDocument(context.Background(), room, NewDocument{Location: writeDoc(t, text)})
	require.NoError(t, err)
	return doc
}

func (h *harness) chunkTexts(t *testing.T, roomID string) []string {
	t.Helper()
	set, err := h.store.GetChunkSet(context.Background(), roomID)
	require.NoError(t, err)
	if set == nil {
		return nil
	}
	return set.Texts()
}

func writeDoc(t *testing.T, text string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "doc-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}
