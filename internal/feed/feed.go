// Package feed maintains a live order-book cache fed by a websocket
// market-data stream, exposing a thread-safe snapshot for strategies and
// the risk pipeline to read against.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

// BookSnapshot maintains an in-memory order book snapshot per market,
// updated concurrently by the feed client's read loop and read
// concurrently by strategies and the risk pipeline.
type BookSnapshot struct {
	mu    sync.RWMutex
	books map[string]quote.OrderBook
}

func NewBookSnapshot() *BookSnapshot {
	return &BookSnapshot{books: make(map[string]quote.OrderBook)}
}

func (s *BookSnapshot) Update(book quote.OrderBook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[book.Ticker] = book
}

func (s *BookSnapshot) Get(ticker string) (quote.OrderBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[ticker]
	return b, ok
}

func (s *BookSnapshot) Mid(ticker string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[ticker]
	if !ok || len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0, fmt.Errorf("no book for %s", ticker)
	}
	return float64(b.Bids[0].Price+b.Asks[0].Price) / 2, nil
}

// Depth returns total bid and ask contract depth across the top n levels.
func (s *BookSnapshot) Depth(ticker string, levels int) (bidDepth, askDepth int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[ticker]
	if !ok {
		return 0, 0
	}
	for i := 0; i < levels && i < len(b.Bids); i++ {
		bidDepth += b.Bids[i].Size
	}
	for i := 0; i < levels && i < len(b.Asks); i++ {
		askDepth += b.Asks[i].Size
	}
	return bidDepth, askDepth
}

// Tickers returns every tracked market.
func (s *BookSnapshot) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.books))
	for id := range s.books {
		ids = append(ids, id)
	}
	return ids
}

// wireBook is the JSON shape of an order-book update message on the
// exchange's public market-data stream.
type wireBook struct {
	Ticker string `json:"ticker"`
	Side   string `json:"side"`
	Bids   []struct {
		Price int `json:"price"`
		Size  int `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price int `json:"price"`
		Size  int `json:"size"`
	} `json:"asks"`
}

// Client streams order-book updates over a websocket connection into a
// BookSnapshot, reconnecting with backoff on disconnect.
type Client struct {
	url      string
	snapshot *BookSnapshot
	log      zerolog.Logger
	dialer   *websocket.Dialer
	backoff  time.Duration
}

func NewClient(url string, snapshot *BookSnapshot, log zerolog.Logger) *Client {
	return &Client{url: url, snapshot: snapshot, log: log, dialer: websocket.DefaultDialer, backoff: 2 * time.Second}
}

// Run streams until ctx is cancelled, reconnecting on every read error.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.log.Warn().Err(err).Str("url", c.url).Msg("feed dial failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		c.readLoop(ctx, conn)
		conn.Close()
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.log.Warn().Err(err).Msg("feed read failed, reconnecting")
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg []byte) {
	var wire wireBook
	if err := json.Unmarshal(msg, &wire); err != nil {
		c.log.Warn().Err(err).Msg("feed message decode failed")
		return
	}

	book := quote.OrderBook{Ticker: wire.Ticker, Side: quote.Side(wire.Side)}
	for _, lvl := range wire.Bids {
		book.Bids = append(book.Bids, quote.BookLevel{Price: lvl.Price, Size: lvl.Size})
	}
	for _, lvl := range wire.Asks {
		book.Asks = append(book.Asks, quote.BookLevel{Price: lvl.Price, Size: lvl.Size})
	}
	c.snapshot.Update(book)
}
