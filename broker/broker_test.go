package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/trendbot/market"
	"github.com/stretchr/testify/assert"
)

// slowBroker blocks every call until its context is done.
type slowBroker struct{ Broker }

func (slowBroker) GetTick(ctx context.Context, symbol string) (market.Tick, error) {
	<-ctx.Done()
	return market.Tick{}, ctx.Err()
}

func (slowBroker) GetAccount(ctx context.Context) (market.Account, error) {
	if _, ok := ctx.Deadline(); !ok {
		return market.Account{}, errors.New("no deadline")
	}
	return market.Account{Balance: 1}, nil
}

func TestWithTimeoutExpires(t *testing.T) {
	t.Parallel()

	b := WithTimeout(slowBroker{}, 20*time.Millisecond)

	start := time.Now()
	_, err := b.GetTick(context.Background(), "EUR_USD")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithTimeoutSetsDeadline(t *testing.T) {
	t.Parallel()

	b := WithTimeout(slowBroker{}, time.Second)
	acct, err := b.GetAccount(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1.0, acct.Balance)
}

func TestWithTimeoutDisabled(t *testing.T) {
	t.Parallel()

	inner := slowBroker{}
	assert.Equal(t, Broker(inner), WithTimeout(inner, 0))
}
