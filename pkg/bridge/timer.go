package bridge

import "time"

// stdTimer implements backoff.Timer with a reusable time.Timer.
type stdTimer struct {
	timer *time.Timer
}

func (t *stdTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *stdTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *stdTimer) C() <-chan time.Time {
	return t.timer.C
}
