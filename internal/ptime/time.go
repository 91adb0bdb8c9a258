package ptime

import (
	"sync"
	"time"
)

// PTime is milliseconds since the first call to Now() in this process.
type PTime uint64

var anchor = struct {
	once sync.Once
	t    time.Time
}{}

func anchorTime() time.Time {
	anchor.once.Do(func() {
		anchor.t = time.Now()
	})
	return anchor.t
}

// Now returns the current PTime, saturating at math.MaxUint64 rather than
// overflowing if the process somehow runs past that many milliseconds.
func Now() PTime {
	return msToPTime(time.Since(anchorTime()).Milliseconds())
}

// msToPTime is the pure saturating conversion Now() applies; split out so
// the saturation boundary is testable without waiting out a real clock.
func msToPTime(ms int64) PTime {
	if ms < 0 {
		return 0
	}
	return PTime(ms)
}

// ResetAnchorForTest rebinds the anchor to now; test-only, never called by
// production code (the anchor is meant to be captured exactly once).
func ResetAnchorForTest() {
	anchor.once = sync.Once{}
	anchorTime()
}
