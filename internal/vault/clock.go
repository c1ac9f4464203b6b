package vault

import (
	"sync/atomic"
	"time"
)

// Stamp identifies a single edit: when it happened and which device made it.
type Stamp struct {
	At       int64
	DeviceID string
}

// Clock hands out edit stamps for one device.
type Clock interface {
	Stamp() Stamp
	// Observe folds in a timestamp seen on another replica so that later
	// local stamps sort after it.
	Observe(ts int64)
}

// HybridClock is wall-clock milliseconds, bumped forward whenever the wall
// clock stalls, goes backwards, or lags behind an observed remote stamp.
// Values it returns are strictly increasing. Safe for concurrent use.
type HybridClock struct {
	deviceID string
	last     atomic.Int64
	wall     func() time.Time
}

func NewHybridClock(deviceID string) *HybridClock {
	return &HybridClock{deviceID: deviceID, wall: time.Now}
}

// NewHybridClockWith uses wall instead of time.Now. Used by tests.
func NewHybridClockWith(deviceID string, wall func() time.Time) *HybridClock {
	return &HybridClock{deviceID: deviceID, wall: wall}
}

func (c *HybridClock) Now() int64 {
	for {
		last := c.last.Load()
		next := c.wall().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if c.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (c *HybridClock) Stamp() Stamp {
	return Stamp{At: c.Now(), DeviceID: c.deviceID}
}

func (c *HybridClock) Observe(ts int64) {
	for {
		last := c.last.Load()
		if ts <= last || c.last.CompareAndSwap(last, ts) {
			return
		}
	}
}

func (c *HybridClock) DeviceID() string {
	return c.deviceID
}
