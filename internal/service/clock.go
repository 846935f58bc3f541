package service

import "time"

// Ticker is the subset of *time.Ticker the quiz countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock supplies time to the quiz countdown so it can be driven in tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }

func (r realTicker) Stop() { r.t.Stop() }
