package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protocol-Lattice/booking-agents/src/discovery"
)

type stubModel struct {
	mu       sync.Mutex
	response string
	calls    int
}

func (m *stubModel) Generate(_ context.Context, _ string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.response, nil
}

func (m *stubModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// specialistFixture fakes one specialist service: card, session start, and
// execute endpoints on a single test server.
type specialistFixture struct {
	srv           *httptest.Server
	cardHits      int32
	startHits     int32
	delegateHits  int32
	startStatus   int32 // HTTP status for session start, default 200
	sessionID     string
	lastSessionID atomic.Value // last X-Session-Id seen on the execute endpoint
	reply         atomic.Value // queryReply returned by the execute endpoint
}

type queryReply struct {
	status int
	body   string
}

func newSpecialistFixture(t *testing.T) *specialistFixture {
	t.Helper()
	f := &specialistFixture{sessionID: "sess-1"}
	atomic.StoreInt32(&f.startStatus, http.StatusOK)
	f.reply.Store(queryReply{status: http.StatusOK,
		body: `{"final_agent_utterance": "Found 2 buses.", "session_id": "sess-1", "user_id": "user_1", "error_message": null}`})

	mux := http.NewServeMux()
	mux.HandleFunc("/bus_booking_agent/.well-known/agent-card", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.cardHits, 1)
		_ = json.NewEncoder(w).Encode(discovery.NewCard(
			"bus_booking_agent", "1.0.0", "Handles bus ticket booking queries.",
			[]string{"finding bus routes"}, f.srv.URL,
		))
	})
	mux.HandleFunc("/start_agent_interaction/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.startHits, 1)
		if status := atomic.LoadInt32(&f.startStatus); status != http.StatusOK {
			http.Error(w, "session service unavailable", int(status))
			return
		}
		fmt.Fprintf(w, `{"agent_name": "bus_booking_agent", "session_id": %q, "user_id": "user_1"}`, f.sessionID)
	})
	mux.HandleFunc("/bus_booking_agent/query", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.delegateHits, 1)
		f.lastSessionID.Store(r.Header.Get("X-Session-Id"))
		reply := f.reply.Load().(queryReply)
		w.WriteHeader(reply.status)
		_, _ = w.Write([]byte(reply.body))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *specialistFixture) discoveryURL() string {
	return f.srv.URL + "/bus_booking_agent"
}

func newTestRouter(t *testing.T, f *specialistFixture, model *stubModel) *Router {
	t.Helper()
	r, err := New(Options{
		Model:          model,
		DiscoveryURLs:  []string{f.discoveryURL()},
		SessionAPIBase: f.srv.URL,
	})
	require.NoError(t, err)
	return r
}

func delegateChoice() *stubModel {
	return &stubModel{response: `{"delegate": true, "agent_name": "bus_booking_agent"}`}
}

func TestRouterDelegatesHappyPath(t *testing.T) {
	f := newSpecialistFixture(t)
	r := newTestRouter(t, f, delegateChoice())

	result := r.HandleTurn(context.Background(), "router-sess", nil, "find buses from Mumbai to Pune")
	require.False(t, result.Failed(), result.Err)
	assert.Equal(t, "Found 2 buses.", result.Utterance, "specialist reply must be relayed verbatim")
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.startHits))
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.delegateHits))
	assert.Equal(t, "sess-1", f.lastSessionID.Load())
}

func TestRouterReusesSpecialistSession(t *testing.T) {
	f := newSpecialistFixture(t)
	r := newTestRouter(t, f, delegateChoice())

	ctx := context.Background()
	r.HandleTurn(ctx, "router-sess", nil, "find buses")
	r.HandleTurn(ctx, "router-sess", nil, "book two seats")

	assert.EqualValues(t, 1, atomic.LoadInt32(&f.startHits), "second turn must reuse the cached session")
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.delegateHits))
}

func TestRouterNeverDelegatesWithFailedSession(t *testing.T) {
	f := newSpecialistFixture(t)
	atomic.StoreInt32(&f.startStatus, http.StatusInternalServerError)
	r := newTestRouter(t, f, delegateChoice())

	result := r.HandleTurn(context.Background(), "router-sess", nil, "find buses")
	require.False(t, result.Failed(), result.Err)
	assert.Contains(t, result.Utterance, "Cannot delegate: previous step failed")
	assert.EqualValues(t, 0, atomic.LoadInt32(&f.delegateHits),
		"delegation must not be attempted with a known-bad session id")

	// The failure is cached but overwritable: once the specialist
	// recovers, the next turn gets a fresh session and delegates.
	atomic.StoreInt32(&f.startStatus, http.StatusOK)
	result = r.HandleTurn(context.Background(), "router-sess", nil, "find buses")
	assert.Equal(t, "Found 2 buses.", result.Utterance)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.delegateHits))
}

func TestRouterWrapsSpecialistError(t *testing.T) {
	f := newSpecialistFixture(t)
	f.reply.Store(queryReply{status: http.StatusOK,
		body: `{"final_agent_utterance": null, "session_id": "sess-1", "user_id": "user_1", "error_message": "tool exploded"}`})
	r := newTestRouter(t, f, delegateChoice())

	result := r.HandleTurn(context.Background(), "router-sess", nil, "find buses")
	assert.Equal(t, "Error from bus_booking_agent: tool exploded", result.Utterance)
}

func TestRouterWrapsHTTPFailure(t *testing.T) {
	f := newSpecialistFixture(t)
	f.reply.Store(queryReply{status: http.StatusBadGateway, body: "bad gateway"})
	r := newTestRouter(t, f, delegateChoice())

	result := r.HandleTurn(context.Background(), "router-sess", nil, "find buses")
	assert.Contains(t, result.Utterance, "Failed to delegate to bus_booking_agent (with session). HTTP Error: 502.")
	assert.Contains(t, result.Utterance, "bad gateway")
}

func TestRouterDropsStaleSession(t *testing.T) {
	f := newSpecialistFixture(t)
	f.reply.Store(queryReply{status: http.StatusOK,
		body: `{"final_agent_utterance": null, "session_id": "sess-1", "user_id": "user_1", "error_message": "Session ID 'sess-1' not found for user 'user_1' and agent 'bus_booking_agent'."}`})
	r := newTestRouter(t, f, delegateChoice())

	ctx := context.Background()
	result := r.HandleTurn(ctx, "router-sess", nil, "find buses")
	assert.Contains(t, result.Utterance, "Error from bus_booking_agent")

	f.reply.Store(queryReply{status: http.StatusOK,
		body: `{"final_agent_utterance": "Recovered.", "session_id": "sess-1", "user_id": "user_1", "error_message": null}`})
	result = r.HandleTurn(ctx, "router-sess", nil, "find buses")
	assert.Equal(t, "Recovered.", result.Utterance)
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.startHits), "stale session must be renewed")
}

func TestRouterGreetingBypassesPipeline(t *testing.T) {
	f := newSpecialistFixture(t)
	model := delegateChoice()
	r := newTestRouter(t, f, model)

	for _, greeting := range []string{"hello", "Hi!", "GOOD MORNING"} {
		result := r.HandleTurn(context.Background(), "router-sess", nil, greeting)
		require.False(t, result.Failed(), result.Err)
		assert.Equal(t, greetingReply, result.Utterance)
	}
	assert.Equal(t, 0, model.callCount(), "greetings must not reach the model")
	assert.EqualValues(t, 0, atomic.LoadInt32(&f.cardHits), "greetings must not trigger discovery")
	assert.EqualValues(t, 0, atomic.LoadInt32(&f.delegateHits))
}

func TestRouterAnswersDirectlyWhenModelDeclines(t *testing.T) {
	f := newSpecialistFixture(t)
	model := &stubModel{response: `{"delegate": false, "reply": "I only handle bus and movie bookings."}`}
	r := newTestRouter(t, f, model)

	result := r.HandleTurn(context.Background(), "router-sess", nil, "what is the weather?")
	assert.Equal(t, "I only handle bus and movie bookings.", result.Utterance)
	assert.EqualValues(t, 0, atomic.LoadInt32(&f.delegateHits))
}

func TestRouterEmptyInput(t *testing.T) {
	f := newSpecialistFixture(t)
	r := newTestRouter(t, f, delegateChoice())

	result := r.HandleTurn(context.Background(), "router-sess", nil, "   ")
	require.True(t, result.Failed())
	assert.Equal(t, "user input is empty", result.Err)
}
