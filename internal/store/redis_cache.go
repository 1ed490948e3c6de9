package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chatmate.app/chatmate/internal/logger"
)

const chunkSetKeyPrefix = "chatmate:chunkset:"

// CachedStore keeps a read-through, write-through copy of each room's chunk set in Redis.
// Every other call goes straight to the wrapped Store.
type CachedStore struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func NewCachedStore(ctx context.Context, inner Store, rdb *redis.Client, ttl time.Duration) (*CachedStore, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &CachedStore{Store: inner, rdb: rdb, ttl: ttl}, nil
}

func chunkSetKey(roomID string) string {
	return chunkSetKeyPrefix + roomID
}

func (s *CachedStore) GetChunkSet(ctx context.Context, roomID string) (*ChunkSet, error) {
	raw, err := s.rdb.Get(ctx, chunkSetKey(roomID)).Bytes()
	switch {
	case err == nil:
		var set ChunkSet
		if err := json.Unmarshal(raw, &set); err == nil {
			return &set, nil
		}
		logger.Warnf("Discarding unreadable cached chunk set for room %s", roomID)
	case !errors.Is(err, redis.Nil):
		logger.Warnf("Redis read failed for room %s, falling back to store: %v", roomID, err)
	}

	set, err := s.Store.GetChunkSet(ctx, roomID)
	if err != nil || set == nil {
		return set, err
	}
	s.put(ctx, set)
	return set, nil
}

func (s *CachedStore) SaveChunkSet(ctx context.Context, set *ChunkSet) error {
	if err := s.Store.SaveChunkSet(ctx, set); err != nil {
		// the old cached value may no longer match what the store holds
		s.invalidate(ctx, set.RoomID)
		return err
	}
	s.put(ctx, set)
	return nil
}

func (s *CachedStore) DeleteRoom(ctx context.Context, roomID string) error {
	if err := s.Store.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	s.invalidate(ctx, roomID)
	return nil
}

func (s *CachedStore) Close() error {
	storeErr := s.Store.Close()
	if err := s.rdb.Close(); err != nil && storeErr == nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return storeErr
}

func (s *CachedStore) put(ctx context.Context, set *ChunkSet) {
	raw, err := json.Marshal(set)
	if err != nil {
		logger.Warnf("Failed to encode chunk set for room %s: %v", set.RoomID, err)
		return
	}
	if err := s.rdb.Set(ctx, chunkSetKey(set.RoomID), raw, s.ttl).Err(); err != nil {
		logger.Warnf("Redis write failed for room %s: %v", set.RoomID, err)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, roomID string) {
	if err := s.rdb.Del(ctx, chunkSetKey(roomID)).Err(); err != nil {
		logger.Warnf("Redis delete failed for room %s: %v", roomID, err)
	}
}
