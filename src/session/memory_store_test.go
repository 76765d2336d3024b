package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	created, err := store.Create(ctx, "bus_booking_agent", "user_1")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "bus_booking_agent", created.AppName)
	assert.Equal(t, "user_1", created.UserID)
	assert.False(t, created.StartTime.IsZero())

	got, err := store.Get(ctx, created.ID, "user_1", "bus_booking_agent")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Empty(t, got.Turns)
}

func TestMemoryStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	created, err := store.Create(ctx, "bus_booking_agent", "user_1")
	require.NoError(t, err)

	_, err = store.Get(ctx, created.ID, "user_2", "bus_booking_agent")
	assert.ErrorIs(t, err, ErrNotFound, "other user must not see the session")

	_, err = store.Get(ctx, created.ID, "user_1", "movie_ticket_agent")
	assert.ErrorIs(t, err, ErrNotFound, "other app must not see the session")

	_, err = store.Get(ctx, "no-such-id", "user_1", "bus_booking_agent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAppendTurnOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	created, err := store.Create(ctx, "bus_booking_agent", "user_1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := store.AppendTurn(ctx, created.ID, Turn{
			UserInput:   fmt.Sprintf("query %d", i),
			AgentOutput: fmt.Sprintf("reply %d", i),
		})
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, created.ID, "user_1", "bus_booking_agent")
	require.NoError(t, err)
	require.Len(t, got.Turns, 3)
	for i, turn := range got.Turns {
		assert.Equal(t, fmt.Sprintf("query %d", i), turn.UserInput)
		assert.Equal(t, fmt.Sprintf("reply %d", i), turn.AgentOutput)
		assert.False(t, turn.CreatedAt.IsZero())
	}
}

func TestMemoryStoreAppendToMissingSession(t *testing.T) {
	store := NewMemoryStore()
	err := store.AppendTurn(context.Background(), "ghost", Turn{UserInput: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	created, err := store.Create(ctx, "app", "user_1")
	require.NoError(t, err)

	before, err := store.Get(ctx, created.ID, "user_1", "app")
	require.NoError(t, err)

	require.NoError(t, store.AppendTurn(ctx, created.ID, Turn{UserInput: "later"}))
	assert.Empty(t, before.Turns, "earlier snapshot must not observe later appends")
}

func TestMemoryStoreConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const creators = 16
	ids := make([]string, creators)
	var wg sync.WaitGroup
	wg.Add(creators)
	for i := 0; i < creators; i++ {
		go func(i int) {
			defer wg.Done()
			created, err := store.Create(ctx, "app", "user_1")
			if err == nil {
				ids[i] = created.ID
				_ = store.AppendTurn(ctx, created.ID, Turn{UserInput: "hi"})
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		require.NotEmpty(t, id)
		got, err := store.Get(ctx, id, "user_1", "app")
		require.NoError(t, err)
		assert.Len(t, got.Turns, 1)
	}
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	created, err := store.Create(ctx, "app", "user_1")
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_ = store.AppendTurn(ctx, created.ID, Turn{UserInput: fmt.Sprintf("q%d", i)})
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, created.ID, "user_1", "app")
	require.NoError(t, err)
	assert.Len(t, got.Turns, writers, "appends are serialized, none may be lost")
}
