// Package lockorder tracks, per goroutine, the stack of lock entities
// currently held — the Go analogue of the original runtime's thread-local
// HELD_MUTEX_STACK, exposed read-only for collector-side lock-order
// (potential deadlock cycle) analysis. Go has no public goroutine-local
// storage, so the stack is keyed by the goroutine id parsed out of a
// runtime stack trace, mirroring the original's thread-local discipline as
// closely as the platform allows.
package lockorder

import (
	"bytes"
	"runtime"
	"strconv"
	stdsync "sync"

	"github.com/moire-rt/moire/internal/ptime"
)

var stacks stdsync.Map // goroutine id (uint64) -> *[]ptime.EntityID

// goroutineID parses the numeric goroutine id out of runtime.Stack's header
// line ("goroutine 123 [running]:"). It is slow — only ever called on the
// lock/unlock slow path, never on a hot loop.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

// Push records id as the innermost held lock on the calling goroutine.
func Push(id ptime.EntityID) {
	gid := goroutineID()
	v, _ := stacks.LoadOrStore(gid, &[]ptime.EntityID{})
	stack := v.(*[]ptime.EntityID)
	*stack = append(*stack, id)
}

// Pop removes id from the calling goroutine's held-lock stack. It pops from
// the top regardless of whether id matches, matching strictly nested
// lock/unlock usage; mismatched pop order is a caller bug this package does
// not attempt to detect.
func Pop(id ptime.EntityID) {
	gid := goroutineID()
	v, ok := stacks.Load(gid)
	if !ok {
		return
	}
	stack := v.(*[]ptime.EntityID)
	if len(*stack) == 0 {
		return
	}
	*stack = (*stack)[:len(*stack)-1]
	if len(*stack) == 0 {
		stacks.Delete(gid)
	}
}

// Snapshot returns the calling goroutine's currently held lock stack,
// innermost last, for collector-side lock-order analysis.
func Snapshot() []ptime.EntityID {
	gid := goroutineID()
	v, ok := stacks.Load(gid)
	if !ok {
		return nil
	}
	stack := v.(*[]ptime.EntityID)
	out := make([]ptime.EntityID, len(*stack))
	copy(out, *stack)
	return out
}
