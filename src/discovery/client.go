package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const cardFetchTimeout = 5 * time.Second

// CardClient fetches agent cards over HTTP and caches them by base URL.
// Only successful fetches are cached, so a specialist that was down at
// startup is retried on the next lookup.
type CardClient struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]Card
}

// NewCardClient returns a card client with an empty cache. A nil logger
// falls back to slog.Default().
func NewCardClient(logger *slog.Logger) *CardClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardClient{
		httpClient: &http.Client{Timeout: cardFetchTimeout},
		logger:     logger,
		cache:      make(map[string]Card),
	}
}

// Fetch returns the card published at baseURL + WellKnownPath. Cached
// cards are returned without a network round trip.
func (c *CardClient) Fetch(ctx context.Context, baseURL string) (Card, error) {
	c.mu.Lock()
	if card, ok := c.cache[baseURL]; ok {
		c.mu.Unlock()
		return card, nil
	}
	c.mu.Unlock()

	cardURL := baseURL + WellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return Card{}, errors.Wrapf(err, "build card request for %s", cardURL)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Card{}, errors.Wrapf(err, "fetch card from %s", cardURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Card{}, fmt.Errorf("fetch card from %s: status %d: %s", cardURL, resp.StatusCode, string(body))
	}

	var card Card
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return Card{}, errors.Wrapf(err, "decode card from %s", cardURL)
	}
	if card.AgentName == "" {
		return Card{}, fmt.Errorf("card from %s has no agent_name", cardURL)
	}

	c.mu.Lock()
	c.cache[baseURL] = card
	c.mu.Unlock()

	c.logger.Info("fetched agent card", "agent", card.AgentName, "url", cardURL)
	return card, nil
}

// FetchAll resolves cards for every base URL, skipping unreachable ones.
// The returned slice preserves the order of urls.
func (c *CardClient) FetchAll(ctx context.Context, urls []string) []Card {
	cards := make([]Card, 0, len(urls))
	for _, u := range urls {
		card, err := c.Fetch(ctx, u)
		if err != nil {
			c.logger.Warn("agent card unavailable", "url", u, "error", err)
			continue
		}
		cards = append(cards, card)
	}
	return cards
}
