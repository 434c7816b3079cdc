package engine

import (
	"strings"

	"github.com/GoPolymarket/polymarket-trader/internal/config"
	"github.com/GoPolymarket/polymarket-trader/internal/feed"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

// noSuffix is the feed-ticker convention this engine expects for a
// binary market's complementary NO-side book: the YES side is tracked
// under the configured ticker itself, the NO side under ticker+noSuffix.
const noSuffix = ":NO"

// marketBooks derives a quote.Market (both sides' bid/ask, joined with
// the static metadata from config) from the live feed snapshot, and
// satisfies marketLookup for the risk-gated submitter.
type marketBooks struct {
	books *feed.BookSnapshot
	meta  map[string]config.MarketConfig
}

func newMarketBooks(books *feed.BookSnapshot, markets []config.MarketConfig) *marketBooks {
	meta := make(map[string]config.MarketConfig, len(markets))
	for _, m := range markets {
		meta[m.Ticker] = m
	}
	return &marketBooks{books: books, meta: meta}
}

func (m *marketBooks) market(ticker string) (quote.Market, *quote.OrderBook, bool) {
	yes, ok := m.books.Get(ticker)
	if !ok {
		return quote.Market{}, nil, false
	}
	market := quote.Market{Ticker: ticker}
	if bid, hasBid := yes.TopPrice(false); hasBid {
		market.YesBid = bid
	}
	if ask, hasAsk := yes.TopPrice(true); hasAsk {
		market.YesAsk = ask
	}

	if no, ok := m.books.Get(ticker + noSuffix); ok {
		if bid, hasBid := no.TopPrice(false); hasBid {
			market.NoBid = bid
		}
		if ask, hasAsk := no.TopPrice(true); hasAsk {
			market.NoAsk = ask
		}
	} else {
		// No independent NO-side feed for this ticker: fall back to the
		// binary complement, which is never assumed true in general (§3)
		// but is the best available estimate absent a second book.
		market.NoBid = 100 - market.YesAsk
		market.NoAsk = 100 - market.YesBid
	}

	return market, &yes, true
}

// Tickers returns every YES-side ticker currently tracked by the feed,
// excluding synthetic NO-side entries.
func (m *marketBooks) Tickers() []string {
	var out []string
	for _, t := range m.books.Tickers() {
		if !strings.HasSuffix(t, noSuffix) {
			out = append(out, t)
		}
	}
	return out
}

// MarketConfig satisfies positionbook.MarketConfigProvider.
func (m *marketBooks) MarketConfig(marketID string) (quote.MarketConfig, bool) {
	cfg, ok := m.meta[marketID]
	if !ok {
		return quote.MarketConfig{}, false
	}
	return quote.MarketConfig{
		Ticker:          cfg.Ticker,
		RiskTier:        quote.RiskTier(cfg.RiskTier),
		MaxPositionSize: cfg.MaxPositionSize,
		MaxNotional:     cfg.MaxNotional,
	}, true
}
