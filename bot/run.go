package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rustyeddy/trendbot/internal/schedule"
	"github.com/rustyeddy/trendbot/journal"
)

// Run executes cycles until ctx is cancelled, sleeping to the next bar
// open after each one. A failed cycle is recorded as "Unhandled Error"
// and followed by a cooldown that doubles up to the configured maximum.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info().Str("symbol", b.cfg.Symbol).Str("timeframe", b.cfg.Timeframe).
		Str("strategy", b.strategy.Name()).Msg("bot started")

	cooldown := b.errCooldown
	for {
		err := b.safeCycle(ctx)
		if ctx.Err() != nil {
			b.log.Info().Msg("bot stopped")
			return nil
		}

		var wait error
		if err != nil {
			b.recordUnhandled(err)
			b.log.Warn().Dur("cooldown", cooldown).Msg("cooling down after error")
			wait = b.sleep(ctx, cooldown)
			cooldown = min(cooldown*2, b.maxCooldown)
		} else {
			cooldown = b.errCooldown
			now := b.clockNow()
			b.log.Debug().Dur("sleep", schedule.Delay(now, b.cfg.Timeframe)).Msg("waiting for next bar")
			wait = b.waitBar(ctx, now, b.cfg.Timeframe)
		}
		if wait != nil {
			b.log.Info().Msg("bot stopped")
			return nil
		}
	}
}

// safeCycle turns a panic inside a cycle into an error.
func (b *Bot) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("stack", string(debug.Stack())).Msgf("panic in cycle: %v", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.Cycle(ctx)
}

func (b *Bot) recordUnhandled(err error) {
	b.log.Error().Err(err).Msg("unexpected error in trading cycle")
	rerr := b.events.Record(journal.Event{
		Time:       time.Now(),
		Kind:       journal.UnhandledError,
		Symbol:     b.cfg.Symbol,
		DailyPnL:   journal.Float(b.dailyPnL()),
		Conditions: b.lastConds,
		Comment:    "Unhandled Exception: " + err.Error(),
	})
	if rerr != nil {
		b.log.Error().Err(rerr).Msg("event log write failed")
	}
}

// clockNow estimates the broker clock from the last cycle's reading.
func (b *Bot) clockNow() time.Time {
	if b.lastNow.IsZero() {
		return time.Now()
	}
	return b.lastNow.Add(time.Since(b.lastStart))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func defaultWaitBar(ctx context.Context, now time.Time, timeframe string) error {
	return schedule.SleepUntilNextBar(ctx, now, timeframe)
}
