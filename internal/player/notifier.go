package player

import (
	"sync"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

// StateChangeEvent is delivered to external consumers on every playback
// state transition (spec §4.7 "transitions emit callbacks").
type StateChangeEvent struct {
	State types.PlaybackState
	Track types.TrackRef
	Err   error // set only when State is StateError
}

// StateChangeCallback receives ordered state-change events.
type StateChangeCallback func(StateChangeEvent)

// notifier delivers state-change events to a single callback strictly in
// the order they occurred, on its own goroutine, so a slow or reentrant
// callback can never stall or reorder the player's own state transitions
// (spec §5: "delivered in the order they occurred, on a dedicated notifier
// thread to avoid callback reentrancy into the player").
type notifier struct {
	events   chan StateChangeEvent
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	callback StateChangeCallback
}

func newNotifier(cb StateChangeCallback) *notifier {
	n := &notifier{
		events:   make(chan StateChangeEvent, 64),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		callback: cb,
	}
	go n.run()
	return n
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		select {
		case ev := <-n.events:
			if n.callback != nil {
				n.callback(ev)
			}
		case <-n.stopCh:
			// Drain any events already queued before the stop signal so
			// ordering is preserved for everything emitted prior to close.
			for {
				select {
				case ev := <-n.events:
					if n.callback != nil {
						n.callback(ev)
					}
				default:
					return
				}
			}
		}
	}
}

// emit enqueues an event for delivery, a no-op once the notifier has been
// closed.
func (n *notifier) emit(ev StateChangeEvent) {
	select {
	case n.events <- ev:
	case <-n.stopCh:
	}
}

// close stops the notifier after delivering any events already queued.
func (n *notifier) close() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	<-n.done
}
