package oanda

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/market"
)

type accountSummary struct {
	Account struct {
		ID              string `json:"id"`
		Currency        string `json:"currency"`
		Balance         string `json:"balance"`
		NAV             string `json:"NAV"`
		MarginUsed      string `json:"marginUsed"`
		MarginAvailable string `json:"marginAvailable"`
	} `json:"account"`
}

// GetAccount returns balance and equity (NAV) of the bound account.
func (c *Client) GetAccount(ctx context.Context) (market.Account, error) {
	var resp accountSummary
	if err := c.do(ctx, "GET", c.accountPath("/summary"), nil, nil, &resp); err != nil {
		return market.Account{}, fmt.Errorf("oanda account: %w: %w", broker.ErrDataUnavailable, err)
	}

	a := resp.Account
	acct := market.Account{ID: a.ID, Currency: a.Currency}
	var err error
	if acct.Balance, err = parseFloat(a.Balance); err != nil {
		return market.Account{}, fmt.Errorf("parse balance: %w", err)
	}
	if acct.Equity, err = parseFloat(a.NAV); err != nil {
		return market.Account{}, fmt.Errorf("parse NAV: %w", err)
	}
	if acct.MarginUsed, err = parseFloat(a.MarginUsed); err != nil {
		return market.Account{}, fmt.Errorf("parse marginUsed: %w", err)
	}
	if acct.FreeMargin, err = parseFloat(a.MarginAvailable); err != nil {
		return market.Account{}, fmt.Errorf("parse marginAvailable: %w", err)
	}
	return acct, nil
}

type apiInstrument struct {
	Name                string `json:"name"`
	PipLocation         int    `json:"pipLocation"`
	DisplayPrecision    int    `json:"displayPrecision"`
	TradeUnitsPrecision int    `json:"tradeUnitsPrecision"`
	MinimumTradeSize    string `json:"minimumTradeSize"`
	MaximumOrderUnits   string `json:"maximumOrderUnits"`
}

type instrumentsResponse struct {
	Instruments []apiInstrument `json:"instruments"`
}

// GetSymbolSpec maps OANDA instrument metadata onto a SymbolSpec.
//
// Volumes are units. A point is one unit of the last displayed digit.
// TickSize is one point and TickValue the account-currency value of a
// one point move on one unit, so TickValue/TickSize is money per point.
func (c *Client) GetSymbolSpec(ctx context.Context, symbol string) (market.SymbolSpec, error) {
	q := url.Values{}
	q.Set("instruments", symbol)

	var resp instrumentsResponse
	if err := c.do(ctx, "GET", c.accountPath("/instruments"), q, nil, &resp); err != nil {
		return market.SymbolSpec{}, fmt.Errorf("oanda instruments %s: %w: %w", symbol, broker.ErrDataUnavailable, err)
	}

	var inst *apiInstrument
	for i := range resp.Instruments {
		if resp.Instruments[i].Name == symbol {
			inst = &resp.Instruments[i]
			break
		}
	}
	if inst == nil {
		return market.SymbolSpec{}, fmt.Errorf("oanda instruments: %w: unknown instrument %s", broker.ErrDataUnavailable, symbol)
	}

	minUnits, err := parseFloat(inst.MinimumTradeSize)
	if err != nil {
		return market.SymbolSpec{}, fmt.Errorf("parse minimumTradeSize: %w", err)
	}
	maxUnits, err := parseFloat(inst.MaximumOrderUnits)
	if err != nil {
		return market.SymbolSpec{}, fmt.Errorf("parse maximumOrderUnits: %w", err)
	}

	conv := 1.0
	if p, err := c.price(ctx, symbol); err == nil && p.QuoteHomeConversionFactors != nil {
		if v, err := parseFloat(p.QuoteHomeConversionFactors.PositiveUnits); err == nil && v > 0 {
			conv = v
		}
	}

	point := math.Pow(10, -float64(inst.DisplayPrecision))
	spec := market.SymbolSpec{
		Name:          symbol,
		Point:         point,
		Digits:        inst.DisplayPrecision,
		MinStopPoints: c.minStopPoints,
		TickSize:      1,
		TickValue:     point * conv,
		VolumeMin:     minUnits,
		VolumeMax:     maxUnits,
		VolumeStep:    math.Pow(10, -float64(inst.TradeUnitsPrecision)),
	}

	c.mu.Lock()
	c.specs[symbol] = spec
	c.mu.Unlock()

	return spec, nil
}

// cachedSpec returns the last spec fetched for symbol, fetching it once
// when absent.
func (c *Client) cachedSpec(ctx context.Context, symbol string) (market.SymbolSpec, error) {
	c.mu.Lock()
	spec, ok := c.specs[symbol]
	c.mu.Unlock()
	if ok {
		return spec, nil
	}
	return c.GetSymbolSpec(ctx, symbol)
}
