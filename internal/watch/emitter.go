package watch

import (
	"log"
	"time"

	"github.com/friendwatch/engine/internal/presence"
)

const (
	// sendWait is the bounded backpressure allowance: how long an emit may
	// block on a full consumer channel before the event is dropped.
	sendWait = 250 * time.Millisecond

	// dropLogInterval throttles drop logging under sustained backpressure.
	dropLogInterval = 10 * time.Second
)

// emitter delivers outbound events to the consumer channel. It never blocks
// beyond sendWait: a consumer that cannot keep up loses events, which are
// counted and logged at most once per dropLogInterval.
//
// All emits for a session happen from its single driver goroutine, so
// channel ordering matches production order.
type emitter struct {
	ch          chan<- presence.Event
	dropped     int64
	lastDropLog time.Time
}

func newEmitter(ch chan<- presence.Event) *emitter {
	return &emitter{ch: ch}
}

func (e *emitter) emit(ev presence.Event) {
	select {
	case e.ch <- ev:
		return
	default:
	}
	timer := time.NewTimer(sendWait)
	defer timer.Stop()
	select {
	case e.ch <- ev:
	case <-timer.C:
		e.dropped++
		now := time.Now()
		if e.lastDropLog.IsZero() || now.Sub(e.lastDropLog) >= dropLogInterval {
			log.Printf("watch: outbound events dropped: %d (channel full)", e.dropped)
			e.dropped = 0
			e.lastDropLog = now
		}
	}
}
