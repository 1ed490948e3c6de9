// Package events announces room activity on a topic exchange.
package events

import (
	"context"
	"time"

	"chatmate.app/chatmate/internal/logger"
)

const Exchange = "chatmate.events"

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

type TurnEvent struct {
	Room      string    `json:"room"`
	TurnID    string    `json:"turn_id,omitempty"`
	QueryText string    `json:"query_text"`
	Persisted bool      `json:"persisted"`
	At        time.Time `json:"at"`
}

type ChunksRefreshedEvent struct {
	Room        string    `json:"room"`
	DocumentIDs []string  `json:"document_ids"`
	Delete      bool      `json:"delete"`
	Chunks      int       `json:"chunks"`
	Saved       bool      `json:"saved"`
	At          time.Time `json:"at"`
}

func TurnCreatedKey(room string) string     { return "room." + room + ".turn.created" }
func TurnEditedKey(room string) string      { return "room." + room + ".turn.edited" }
func ChunksRefreshedKey(room string) string { return "room." + room + ".chunks.refreshed" }

// Emit publishes and only logs failures; callers never fail because of events.
func Emit(ctx context.Context, p Publisher, routingKey string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		logger.Warnf("Failed to publish %s: %v", routingKey, err)
	}
}

var _ Publisher = NopPublisher{}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
