package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits a periodic liveness event carrying the number of open
// spans. A heartbeat whose count never drops while no span ends points at
// a device compile or dispatch that hangs.
type Heartbeat struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartHeartbeat starts beating every interval. It returns nil when tracer
// is disabled or interval is not positive; Stop on nil is a no-op.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(h.done)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for beat := 1; ; beat++ {
			select {
			case <-h.stop:
				return
			case now := <-tick.C:
				tracer.Emit(&Event{
					Time:   now,
					Seq:    NextSeq(),
					Kind:   KindHeartbeat,
					Scope:  ScopeCommand,
					GID:    goroutineID(),
					Name:   "heartbeat",
					Detail: fmt.Sprintf("#%d open=%d", beat, OpenSpans()),
				})
			}
		}
	}()
	return h
}

// Stop ends the heartbeat and waits for its goroutine.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
