package risk

import (
	"math/rand"
	"testing"

	"github.com/rustyeddy/trendbot/market"
	"github.com/stretchr/testify/assert"
)

var trailOn = TrailConfig{Enabled: true, ATRFactor: 1.0, MinProfitPoints: 50}

func TestTrailStop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pos   market.Position
		price float64
		cfg   TrailConfig
		want  float64
		ok    bool
	}{
		{"disabled", market.Position{Side: market.Buy, OpenPrice: 100, SL: 97}, 110, TrailConfig{}, 0, false},
		{"buy tightens", market.Position{Side: market.Buy, OpenPrice: 100, SL: 97}, 105, trailOn, 103, true},
		{"buy below min profit", market.Position{Side: market.Buy, OpenPrice: 100, SL: 97}, 100.4, trailOn, 0, false},
		{"buy never loosens", market.Position{Side: market.Buy, OpenPrice: 100, SL: 104}, 105, trailOn, 0, false},
		{"buy without stop", market.Position{Side: market.Buy, OpenPrice: 100}, 105, trailOn, 103, true},
		{"sell tightens", market.Position{Side: market.Sell, OpenPrice: 100, SL: 103}, 95, trailOn, 97, true},
		{"sell never loosens", market.Position{Side: market.Sell, OpenPrice: 100, SL: 96}, 95, trailOn, 0, false},
		{"sell without stop", market.Position{Side: market.Sell, OpenPrice: 100}, 95, trailOn, 97, true},
		{"sell in loss", market.Position{Side: market.Sell, OpenPrice: 100, SL: 103}, 101, trailOn, 0, false},
		{"rounds to digits", market.Position{Side: market.Buy, OpenPrice: 100, SL: 97}, 105.123, trailOn, 103.12, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := TrailStop(tc.pos, goldSpec(), tc.price, 2.0, tc.cfg)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestTrailStopMonotonic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	buy := market.Position{Side: market.Buy, OpenPrice: 100, SL: 95}
	sell := market.Position{Side: market.Sell, OpenPrice: 100, SL: 105}

	for i := 0; i < 5000; i++ {
		price := 90 + rng.Float64()*20
		atr := rng.Float64() * 5

		if sl, ok := TrailStop(buy, goldSpec(), price, atr, trailOn); ok {
			assert.Greater(t, sl, buy.SL)
			buy.SL = sl
		}
		if sl, ok := TrailStop(sell, goldSpec(), price, atr, trailOn); ok {
			assert.Less(t, sl, sell.SL)
			sell.SL = sl
		}
	}
}
