package oanda

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/market"
)

// maxCandles is the v20 limit on count per request.
const maxCandles = 5000

// granularities maps bot timeframes to OANDA candle granularities.
var granularities = map[string]string{
	"M1":  "M1",
	"M5":  "M5",
	"M15": "M15",
	"M30": "M30",
	"H1":  "H1",
	"H4":  "H4",
	"D1":  "D",
	"W1":  "W",
	"MN1": "M",
}

// Granularity returns the OANDA granularity for a timeframe.
func Granularity(tf string) (string, error) {
	g, ok := granularities[strings.ToUpper(strings.TrimSpace(tf))]
	if !ok {
		return "", fmt.Errorf("unsupported timeframe %q", tf)
	}
	return g, nil
}

// candleData represents the OHLC data in the API response
type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

// apiCandle represents a single candle in the API response
type apiCandle struct {
	Complete bool       `json:"complete"`
	Volume   int        `json:"volume"`
	Time     string     `json:"time"`
	Mid      candleData `json:"mid"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// FetchBars returns the last count complete mid-price candles, oldest
// first. The still-forming candle is never included.
func (c *Client) FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]market.Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("instrument is required")
	}
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}
	gran, err := Granularity(timeframe)
	if err != nil {
		return nil, err
	}

	// one extra for the incomplete candle OANDA returns last
	n := count + 1
	if n > maxCandles {
		n = maxCandles
	}

	params := url.Values{}
	params.Set("price", "M")
	params.Set("granularity", gran)
	params.Set("count", strconv.Itoa(n))

	var resp candlesResponse
	path := fmt.Sprintf("/v3/instruments/%s/candles", url.PathEscape(symbol))
	if err := c.do(ctx, "GET", path, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("oanda candles %s: %w: %w", symbol, broker.ErrDataUnavailable, err)
	}

	bars := make([]market.Bar, 0, len(resp.Candles))
	for _, ac := range resp.Candles {
		if !ac.Complete {
			continue
		}
		bar, err := toBar(ac)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}

	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("oanda candles %s: %w: no complete candles", symbol, broker.ErrDataUnavailable)
	}
	return bars, nil
}

func toBar(ac apiCandle) (market.Bar, error) {
	t, err := time.Parse(time.RFC3339, ac.Time)
	if err != nil {
		return market.Bar{}, fmt.Errorf("parse time %s: %w", ac.Time, err)
	}

	var ohlc [4]float64
	for i, s := range []string{ac.Mid.O, ac.Mid.H, ac.Mid.L, ac.Mid.C} {
		v, err := parseFloat(s)
		if err != nil {
			return market.Bar{}, fmt.Errorf("parse price %q: %w", s, err)
		}
		ohlc[i] = v
	}

	return market.Bar{
		Time:   t.UTC(),
		Open:   ohlc[0],
		High:   ohlc[1],
		Low:    ohlc[2],
		Close:  ohlc[3],
		Volume: float64(ac.Volume),
	}, nil
}
