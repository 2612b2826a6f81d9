package engine

import "time"

// scheduler owns the single cancellable timer behind the inactivity flush.
// Every drawing input resets it; when it fires it posts flushDueMsg to the
// engine inbox. Scheduling and cancellation are explicit operations so no
// timer-handle bookkeeping leaks into the engine logic.
type scheduler struct {
	delay time.Duration
	inbox chan<- Msg
	timer *time.Timer
}

func newScheduler(delay time.Duration, inbox chan<- Msg) *scheduler {
	return &scheduler{delay: delay, inbox: inbox}
}

// Reset (re)arms the timer for a full delay from now.
func (s *scheduler) Reset() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		// drop the tick if the inbox is full; a flush is already pending
		select {
		case s.inbox <- flushDueMsg{}:
		default:
		}
	})
}

// Cancel stops the pending fire, if any.
func (s *scheduler) Cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
