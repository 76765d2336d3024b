package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardServer(t *testing.T, hits *int32, fail *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != WellKnownPath {
			http.NotFound(w, r)
			return
		}
		if atomic.LoadInt32(fail) != 0 {
			http.Error(w, "temporarily down", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(NewCard(
			"bus_booking_agent", "1.0.0", "Handles bus ticket booking queries.",
			[]string{"finding bus routes"}, "http://example.test",
		))
	}))
}

func TestCardClientCachesSuccessfulFetch(t *testing.T) {
	var hits, fail int32
	srv := cardServer(t, &hits, &fail)
	defer srv.Close()

	client := NewCardClient(nil)
	ctx := context.Background()

	first, err := client.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "bus_booking_agent", first.AgentName)

	second, err := client.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "second fetch must hit the cache")
}

func TestCardClientDoesNotCacheFailures(t *testing.T) {
	var hits, fail int32
	atomic.StoreInt32(&fail, 1)
	srv := cardServer(t, &hits, &fail)
	defer srv.Close()

	client := NewCardClient(nil)
	ctx := context.Background()

	_, err := client.Fetch(ctx, srv.URL)
	require.Error(t, err)

	atomic.StoreInt32(&fail, 0)
	card, err := client.Fetch(ctx, srv.URL)
	require.NoError(t, err, "a failed fetch must be retried, not cached")
	assert.Equal(t, "bus_booking_agent", card.AgentName)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestCardClientFetchAllToleratesPartialFailure(t *testing.T) {
	var hits, fail int32
	srv := cardServer(t, &hits, &fail)
	defer srv.Close()

	client := NewCardClient(nil)
	cards := client.FetchAll(context.Background(), []string{
		"http://127.0.0.1:9", // unreachable
		srv.URL,
	})

	require.Len(t, cards, 1)
	assert.Equal(t, "bus_booking_agent", cards[0].AgentName)
}

func TestCardExecuteEndpointShape(t *testing.T) {
	card := NewCard("movie_ticket_agent", "1.0.0", "desc", nil, "http://host:8001")
	assert.Equal(t, "http://host:8001/movie_ticket_agent/query", card.Endpoints.ExecuteTask.URL)
	assert.Equal(t, http.MethodPost, card.Endpoints.ExecuteTask.Method)
}
