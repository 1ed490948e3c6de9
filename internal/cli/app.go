package cli

import (
	"context"
	"errors"
	"fmt"

	"chatmate.app/chatmate/internal/config"
	"chatmate.app/chatmate/internal/core"
	"chatmate.app/chatmate/internal/embedding"
	"chatmate.app/chatmate/internal/events"
	"chatmate.app/chatmate/internal/extract"
	"chatmate.app/chatmate/internal/generation"
	"chatmate.app/chatmate/internal/logger"
	"chatmate.app/chatmate/internal/objectstore"
	"chatmate.app/chatmate/internal/segment"
	"chatmate.app/chatmate/internal/store"
)

// app holds every collaborator a command may need.
type app struct {
	store     store.Store
	publisher events.Publisher
	embedder  embedding.Embedder
	generator generation.Generator

	documents *core.DocumentService
	chunks    *core.ChunkService
	chat      *core.ChatService
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Database.Driver {
	case "postgres":
		st, err = store.NewPostgresStore(ctx, cfg.Database.URL)
	default:
		st, err = store.NewSQLiteStore(cfg.Database.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if cfg.Redis.Addr == "" {
		return st, nil
	}
	cached, err := store.NewCachedStore(ctx, st, store.NewRedisClient(cfg.Redis.Addr), cfg.Redis.TTL)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Infof("Chunk sets cached in redis at %s", cfg.Redis.Addr)
	return cached, nil
}

func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, nil
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL)
	if err != nil {
		return nil, err
	}
	logger.Infof("Publishing events to exchange %s", events.Exchange)
	return pub, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	var err error
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.store, err = openStore(ctx, cfg); err != nil {
		return nil, err
	}
	if a.publisher, err = openPublisher(cfg); err != nil {
		return nil, err
	}

	extractOpts := []extract.Option{}
	var uploader core.Uploader
	if cfg.MinIO.Endpoint != "" {
		var objects *objectstore.Store
		if objects, err = objectstore.New(ctx, cfg.MinIO); err != nil {
			return nil, err
		}
		extractOpts = append(extractOpts, extract.WithObjectStore(objects))
		uploader = objects
		logger.Infof("Document objects stored in bucket %s at %s", cfg.MinIO.Bucket, cfg.MinIO.Endpoint)
	}

	if a.embedder, err = embedding.New(ctx, cfg.Embedding, cfg.GeminiAPIKey); err != nil {
		return nil, err
	}
	if a.generator, err = generation.New(ctx, cfg.Generation, cfg.GeminiAPIKey); err != nil {
		return nil, err
	}
	logger.Debugf("Embedding model %s (dimensions %d, 0 until first call), generation model %s",
		a.embedder.ModelName(), a.embedder.Dimensions(), a.generator.ModelName())

	seg := segment.New(segment.WithSize(cfg.Retrieval.PassageSize), segment.WithOverlap(cfg.Retrieval.PassageOverlap))
	retriever := core.NewRetriever(a.embedder, seg, cfg.Retrieval.TopK, cfg.Retrieval.IndexDir)

	a.chunks = core.NewChunkService(a.store, extract.NewService(extractOpts...), cfg.ChunkSetMode, a.publisher)
	a.documents = core.NewDocumentService(a.store, a.chunks, uploader)
	a.chat = core.NewChatService(a.store, retriever, a.generator, a.publisher, core.ChatOptions{
		DedupScope:        store.DedupScope(cfg.DedupScope),
		HistoryRanking:    cfg.Retrieval.HistoryRanking,
		GenerationTimeout: cfg.Generation.Timeout,
	})
	return a, nil
}

// Close releases whatever newApp managed to open.
func (a *app) Close() error {
	var errs []error
	if a.generator != nil {
		errs = append(errs, a.generator.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
