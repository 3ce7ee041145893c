package oanda

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/market"
)

type clientExtensions struct {
	ID      string `json:"id,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type attachedOrder struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

type apiTrade struct {
	ID                string            `json:"id"`
	Instrument        string            `json:"instrument"`
	Price             string            `json:"price"`
	OpenTime          string            `json:"openTime"`
	State             string            `json:"state"`
	InitialUnits      string            `json:"initialUnits"`
	CurrentUnits      string            `json:"currentUnits"`
	RealizedPL        string            `json:"realizedPL"`
	CloseTime         string            `json:"closeTime,omitempty"`
	AverageClosePrice string            `json:"averageClosePrice,omitempty"`
	ClientExtensions  *clientExtensions `json:"clientExtensions,omitempty"`
	StopLossOrder     *attachedOrder    `json:"stopLossOrder,omitempty"`
	TakeProfitOrder   *attachedOrder    `json:"takeProfitOrder,omitempty"`
}

type tradesResponse struct {
	Trades []apiTrade `json:"trades"`
}

func magicTag(magic int) string {
	return strconv.Itoa(magic)
}

func (t apiTrade) magic() int {
	if t.ClientExtensions == nil {
		return 0
	}
	m, _ := strconv.Atoi(t.ClientExtensions.Tag)
	return m
}

func (t apiTrade) toPosition() (market.Position, error) {
	units, err := parseFloat(t.CurrentUnits)
	if err != nil {
		return market.Position{}, fmt.Errorf("parse currentUnits: %w", err)
	}
	open, err := parseFloat(t.Price)
	if err != nil {
		return market.Position{}, fmt.Errorf("parse price: %w", err)
	}

	pos := market.Position{
		Ticket:    t.ID,
		Symbol:    t.Instrument,
		Side:      market.Buy,
		OpenPrice: open,
		Volume:    units,
		Magic:     t.magic(),
	}
	if units < 0 {
		pos.Side = market.Sell
		pos.Volume = -units
	}
	if ot, err := time.Parse(time.RFC3339, t.OpenTime); err == nil {
		pos.OpenTime = ot.UTC()
	}
	if t.StopLossOrder != nil {
		if pos.SL, err = parseFloat(t.StopLossOrder.Price); err != nil {
			return market.Position{}, fmt.Errorf("parse stop loss: %w", err)
		}
	}
	if t.TakeProfitOrder != nil {
		if pos.TP, err = parseFloat(t.TakeProfitOrder.Price); err != nil {
			return market.Position{}, fmt.Errorf("parse take profit: %w", err)
		}
	}
	return pos, nil
}

// GetOpenPosition returns the first open trade on symbol whose client tag
// matches magic.
func (c *Client) GetOpenPosition(ctx context.Context, symbol string, magic int) (*market.Position, error) {
	var resp tradesResponse
	if err := c.do(ctx, "GET", c.accountPath("/openTrades"), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("oanda open trades: %w: %w", broker.ErrDataUnavailable, err)
	}

	for _, t := range resp.Trades {
		if t.Instrument != symbol || t.magic() != magic {
			continue
		}
		pos, err := t.toPosition()
		if err != nil {
			return nil, err
		}
		return &pos, nil
	}
	return nil, nil
}

type priceDetails struct {
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce,omitempty"`
}

type tradeOrdersRequest struct {
	StopLoss   *priceDetails `json:"stopLoss,omitempty"`
	TakeProfit *priceDetails `json:"takeProfit,omitempty"`
}

// ModifyStop replaces the stop loss, and the take profit when TP is set,
// on an open trade.
func (c *Client) ModifyStop(ctx context.Context, req broker.ModifyRequest) (broker.ModifyResult, error) {
	spec, err := c.cachedSpec(ctx, req.Symbol)
	if err != nil {
		return broker.ModifyResult{}, err
	}

	body := tradeOrdersRequest{
		StopLoss: &priceDetails{Price: formatPrice(req.SL, spec.Digits), TimeInForce: "GTC"},
	}
	if req.TP > 0 {
		body.TakeProfit = &priceDetails{Price: formatPrice(req.TP, spec.Digits), TimeInForce: "GTC"}
	}

	path := c.accountPath("/trades/%s/orders", url.PathEscape(req.PositionID))
	err = c.do(ctx, "PUT", path, nil, body, nil)
	if apiErr, ok := isAPIError(err); ok {
		return broker.ModifyResult{Retcode: apiErr.Status, Message: apiErr.Error()}, nil
	}
	if err != nil {
		return broker.ModifyResult{}, fmt.Errorf("oanda modify trade %s: %w", req.PositionID, err)
	}
	return broker.ModifyResult{Success: true, Retcode: 200}, nil
}

type closeResponse struct {
	OrderFillTransaction *struct {
		ID    string `json:"id"`
		Price string `json:"price"`
		PL    string `json:"pl"`
	} `json:"orderFillTransaction,omitempty"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction,omitempty"`
}

// ClosePosition closes the whole trade at market.
func (c *Client) ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.CloseResult, error) {
	var resp closeResponse
	path := c.accountPath("/trades/%s/close", url.PathEscape(req.Position.Ticket))
	err := c.do(ctx, "PUT", path, nil, map[string]string{"units": "ALL"}, &resp)
	if apiErr, ok := isAPIError(err); ok {
		return broker.CloseResult{Retcode: apiErr.Status, Message: apiErr.Error()}, nil
	}
	if err != nil {
		return broker.CloseResult{}, fmt.Errorf("oanda close trade %s: %w", req.Position.Ticket, err)
	}

	if resp.OrderFillTransaction == nil {
		msg := "close order not filled"
		if resp.OrderCancelTransaction != nil {
			msg = resp.OrderCancelTransaction.Reason
		}
		return broker.CloseResult{Retcode: 200, Message: msg}, nil
	}

	fill := resp.OrderFillTransaction
	res := broker.CloseResult{Success: true, DealID: fill.ID, Retcode: 200}
	if res.ClosePrice, err = parseFloat(fill.Price); err != nil {
		return res, fmt.Errorf("parse close price: %w", err)
	}
	if res.RealizedPnL, err = parseFloat(fill.PL); err != nil {
		return res, fmt.Errorf("parse pl: %w", err)
	}
	return res, nil
}

// FetchClosedDeals returns closed trades whose close time lies in
// [from, to], as closing deals. Only the most recent 500 closed trades are
// inspected.
func (c *Client) FetchClosedDeals(ctx context.Context, from, to time.Time) ([]market.Deal, error) {
	q := url.Values{}
	q.Set("state", "CLOSED")
	q.Set("count", "500")

	var resp tradesResponse
	if err := c.do(ctx, "GET", c.accountPath("/trades"), q, nil, &resp); err != nil {
		return nil, fmt.Errorf("oanda closed trades: %w: %w", broker.ErrDataUnavailable, err)
	}

	var deals []market.Deal
	for _, t := range resp.Trades {
		ct, err := time.Parse(time.RFC3339, t.CloseTime)
		if err != nil {
			continue
		}
		if ct.Before(from) || ct.After(to) {
			continue
		}

		pl, err := parseFloat(t.RealizedPL)
		if err != nil {
			return nil, fmt.Errorf("parse realizedPL: %w", err)
		}
		price, _ := parseFloat(t.AverageClosePrice)
		units, _ := parseFloat(t.InitialUnits)

		side := market.Buy
		if units < 0 {
			side, units = market.Sell, -units
		}

		deals = append(deals, market.Deal{
			ID:         t.ID,
			PositionID: t.ID,
			Symbol:     t.Instrument,
			Time:       ct.UTC(),
			Side:       side.Opposite(),
			Volume:     units,
			Price:      price,
			Profit:     pl,
			Magic:      t.magic(),
			Entry:      market.DealOut,
		})
	}
	return deals, nil
}
