package node

import (
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer drives the maintenance loop. It fires on tickCh after each
// period until it is stopped; the period can be changed through resetCh.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}      //sends a signal to listening process
	resetCh      chan time.Duration //receives a new period
	stopCh       chan struct{}      //receives instruction to stop ticking
	shutdownCh   chan struct{}      //receives instruction to exit Run loop
}

// NewControlTimer ...
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

// NewPeriodicControlTimer returns a ControlTimer backed by time.After.
func NewPeriodicControlTimer() *ControlTimer {
	return NewControlTimer(func(d time.Duration) <-chan time.Time {
		if d <= 0 {
			return nil
		}
		return time.After(d)
	})
}

// Run ticks every period until Shutdown. A pending tick is dropped when the
// timer is stopped, reset or shut down before it is consumed.
func (c *ControlTimer) Run(period time.Duration) {
	timer := c.timerFactory(period)
	for {
		select {
		case <-timer:
			timer = nil
			select {
			case c.tickCh <- struct{}{}:
				timer = c.timerFactory(period)
			case p := <-c.resetCh:
				period = p
				timer = c.timerFactory(period)
			case <-c.stopCh:
			case <-c.shutdownCh:
				return
			}
		case p := <-c.resetCh:
			period = p
			timer = c.timerFactory(period)
		case <-c.stopCh:
			timer = nil
		case <-c.shutdownCh:
			return
		}
	}
}

// Shutdown exits the Run loop.
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
