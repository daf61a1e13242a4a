// Package timex converts between the time units used on the bus and by
// peripherals.
package timex

import "time"

// NowMs is the wall clock in Unix milliseconds, the timestamp unit of bus
// events.
func NowMs() int64 { return time.Now().UnixMilli() }

// Period is the interval between ticks at hz. Zero means unpaced and
// yields zero.
func Period(hz uint32) time.Duration {
	if hz == 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}
