package oanda

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/market"
)

type priceBucket struct {
	Price string `json:"price"`
}

type clientPrice struct {
	Instrument string        `json:"instrument"`
	Time       string        `json:"time"`
	Tradeable  bool          `json:"tradeable"`
	Bids       []priceBucket `json:"bids"`
	Asks       []priceBucket `json:"asks"`

	QuoteHomeConversionFactors *struct {
		PositiveUnits string `json:"positiveUnits"`
		NegativeUnits string `json:"negativeUnits"`
	} `json:"quoteHomeConversionFactors,omitempty"`
}

type pricingResponse struct {
	Prices []clientPrice `json:"prices"`
}

func (c *Client) price(ctx context.Context, symbol string) (clientPrice, error) {
	q := url.Values{}
	q.Set("instruments", symbol)

	var resp pricingResponse
	if err := c.do(ctx, "GET", c.accountPath("/pricing"), q, nil, &resp); err != nil {
		return clientPrice{}, err
	}
	for _, p := range resp.Prices {
		if p.Instrument == symbol {
			return p, nil
		}
	}
	return clientPrice{}, fmt.Errorf("no price for %s", symbol)
}

// GetTick returns the best bid and ask for symbol.
func (c *Client) GetTick(ctx context.Context, symbol string) (market.Tick, error) {
	p, err := c.price(ctx, symbol)
	if err != nil {
		return market.Tick{}, fmt.Errorf("oanda pricing %s: %w: %w", symbol, broker.ErrDataUnavailable, err)
	}
	if len(p.Bids) == 0 || len(p.Asks) == 0 {
		return market.Tick{}, fmt.Errorf("oanda pricing %s: %w: empty book", symbol, broker.ErrDataUnavailable)
	}

	bid, err := parseFloat(p.Bids[0].Price)
	if err != nil {
		return market.Tick{}, fmt.Errorf("parse bid: %w", err)
	}
	ask, err := parseFloat(p.Asks[0].Price)
	if err != nil {
		return market.Tick{}, fmt.Errorf("parse ask: %w", err)
	}

	t, err := time.Parse(time.RFC3339, p.Time)
	if err != nil {
		t = time.Now()
	}

	return market.Tick{Symbol: symbol, Time: t.UTC(), Bid: bid, Ask: ask}, nil
}
