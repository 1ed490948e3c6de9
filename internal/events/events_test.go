package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, string, any) error {
	f.calls++
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error { return nil }

func TestRoutingKeys(t *testing.T) {
	assert.Equal(t, "room.history.turn.created", TurnCreatedKey("history"))
	assert.Equal(t, "room.history.turn.edited", TurnEditedKey("history"))
	assert.Equal(t, "room.history.chunks.refreshed", ChunksRefreshedKey("history"))
}

func TestEmit_SwallowsFailures(t *testing.T) {
	p := &failingPublisher{}
	assert.NotPanics(t, func() {
		Emit(context.Background(), p, "room.x.turn.created", TurnEvent{Room: "x"})
		Emit(context.Background(), nil, "room.x.turn.created", TurnEvent{Room: "x"})
	})
	assert.Equal(t, 1, p.calls)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "k", map[string]string{"a": "b"}))
	assert.NoError(t, p.Close())
}
