package monitor

import "time"

// Ticker periodic tick source owned by the monitor
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker firing every d
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTimeTicker wraps time.NewTicker
func NewTimeTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

func (tt *timeTicker) C() <-chan time.Time { return tt.t.C }

func (tt *timeTicker) Stop() { tt.t.Stop() }
