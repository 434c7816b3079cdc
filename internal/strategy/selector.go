package strategy

import (
	"sort"

	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

// MarketCandidate is one market scored for auto-selection.
type MarketCandidate struct {
	Ticker    string
	Volume24h int64
	Depth     int
	Spread    int
	Score     float64
}

// SelectorConfig filters and scores candidate markets before a strategy
// is activated on them.
type SelectorConfig struct {
	MinDepth      int
	MinVolume24h  int64
	MaxSpread     int
}

// SelectMarkets ranks active markets by liquidity and recent volume,
// filtering out anything too thin or too wide to trade safely, and
// returns the top N tickers.
func SelectMarkets(markets []quote.Market, books map[string]quote.OrderBook, cfg SelectorConfig, topN int) []MarketCandidate {
	var candidates []MarketCandidate
	for _, m := range markets {
		book, ok := books[m.Ticker]
		if !ok {
			continue
		}
		bid, ask := m.BidAsk(quote.SideYes)
		if bid <= 0 || ask <= 0 || ask <= bid {
			continue
		}
		spread := ask - bid
		depth := book.TotalDepth(true) + book.TotalDepth(false)

		if depth < cfg.MinDepth {
			continue
		}
		if m.Volume24h < cfg.MinVolume24h {
			continue
		}
		if cfg.MaxSpread > 0 && spread > cfg.MaxSpread {
			continue
		}

		score := float64(depth) * float64(m.Volume24h) / float64(spread+1)
		candidates = append(candidates, MarketCandidate{
			Ticker: m.Ticker, Volume24h: m.Volume24h, Depth: depth, Spread: spread, Score: score,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if topN > 0 && topN < len(candidates) {
		candidates = candidates[:topN]
	}
	return candidates
}
