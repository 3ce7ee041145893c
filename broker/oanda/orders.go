package oanda

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/market"
)

type marketOrder struct {
	Type                  string            `json:"type"`
	Instrument            string            `json:"instrument"`
	Units                 string            `json:"units"`
	TimeInForce           string            `json:"timeInForce"`
	PositionFill          string            `json:"positionFill"`
	PriceBound            string            `json:"priceBound,omitempty"`
	StopLossOnFill        *priceDetails     `json:"stopLossOnFill,omitempty"`
	TakeProfitOnFill      *priceDetails     `json:"takeProfitOnFill,omitempty"`
	ClientExtensions      *clientExtensions `json:"clientExtensions,omitempty"`
	TradeClientExtensions *clientExtensions `json:"tradeClientExtensions,omitempty"`
}

type orderRequest struct {
	Order marketOrder `json:"order"`
}

type orderResponse struct {
	OrderFillTransaction *struct {
		ID          string `json:"id"`
		Price       string `json:"price"`
		TradeOpened *struct {
			TradeID string `json:"tradeID"`
			Units   string `json:"units"`
		} `json:"tradeOpened,omitempty"`
	} `json:"orderFillTransaction,omitempty"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction,omitempty"`
}

// SubmitMarketOrder sends a fill-or-kill market order with stop loss and
// take profit attached. Deviation becomes a price bound that many points
// away from the requested price. The trade is tagged with the magic number
// so GetOpenPosition and FetchClosedDeals can find it again.
func (c *Client) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	spec, err := c.cachedSpec(ctx, req.Symbol)
	if err != nil {
		return broker.OrderResult{}, err
	}

	units := req.Volume
	if req.Side == market.Sell {
		units = -units
	}

	ext := &clientExtensions{
		ID:      uuid.New().String(),
		Tag:     magicTag(req.Magic),
		Comment: req.Comment,
	}
	order := marketOrder{
		Type:                  "MARKET",
		Instrument:            req.Symbol,
		Units:                 strconv.FormatFloat(units, 'f', spec.VolumePrecision(), 64),
		TimeInForce:           "FOK",
		PositionFill:          "DEFAULT",
		ClientExtensions:      ext,
		TradeClientExtensions: &clientExtensions{Tag: ext.Tag, Comment: req.Comment},
	}
	if req.Deviation > 0 && req.Price > 0 {
		bound := req.Price + float64(req.Deviation)*spec.Point*float64(req.Side)
		order.PriceBound = formatPrice(bound, spec.Digits)
	}
	if req.SL > 0 {
		order.StopLossOnFill = &priceDetails{Price: formatPrice(req.SL, spec.Digits), TimeInForce: "GTC"}
	}
	if req.TP > 0 {
		order.TakeProfitOnFill = &priceDetails{Price: formatPrice(req.TP, spec.Digits), TimeInForce: "GTC"}
	}

	var resp orderResponse
	err = c.do(ctx, "POST", c.accountPath("/orders"), nil, orderRequest{Order: order}, &resp)
	if apiErr, ok := isAPIError(err); ok {
		return broker.OrderResult{Retcode: apiErr.Status, Message: apiErr.Error()}, nil
	}
	if err != nil {
		return broker.OrderResult{}, fmt.Errorf("oanda order %s: %w", req.Symbol, err)
	}

	if resp.OrderFillTransaction == nil {
		msg := "order not filled"
		if resp.OrderCancelTransaction != nil {
			msg = resp.OrderCancelTransaction.Reason
		}
		return broker.OrderResult{Retcode: 201, Message: msg}, nil
	}

	fill := resp.OrderFillTransaction
	res := broker.OrderResult{Success: true, DealID: fill.ID, Retcode: 201, Message: "filled"}
	if fill.TradeOpened != nil {
		res.PositionID = fill.TradeOpened.TradeID
	}
	if res.Price, err = parseFloat(fill.Price); err != nil {
		return res, fmt.Errorf("parse fill price: %w", err)
	}
	return res, nil
}
