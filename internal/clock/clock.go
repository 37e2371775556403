package clock

import "time"

// Clock is an injectable time source. All core components take a Clock so
// tests never wait on the wall clock.
type Clock interface {
	Now() time.Time
}

// Ticker is an injectable periodic tick source with explicit stop,
// replacing ambient global timers.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System is the production Clock; it reports UTC instants.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemTicker returns a Ticker backed by time.Ticker.
func NewSystemTicker(interval time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(interval)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time {
	return s.t.C
}

func (s *systemTicker) Stop() {
	s.t.Stop()
}
