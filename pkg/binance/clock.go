package binance

import (
	"sync/atomic"
	"time"
)

// Clock hands out strictly increasing millisecond timestamps for the
// "timestamp" request parameter, even when the wall clock stalls or steps back.
type Clock struct {
	last atomic.Int64
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Next returns max(now, previous+1) in Unix milliseconds.
func (c *Clock) Next() int64 {
	for {
		now := c.now().UnixMilli()
		last := c.last.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if c.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
