// Package capture implements the process's own capture_current facility:
// walking the calling goroutine's stack, interning it as a BacktraceRecord,
// and reconstructing the module manifest the dashboard needs to symbolize
// it. Go has no native notion of a binary's relative program counters, so a
// "module" here is a function's declaring package and RelPC is the offset
// from that function's entry point — the closest idiomatic analogue to
// frame-pointer unwinding against a loaded module.
package capture

import (
	"encoding/binary"
	"runtime"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

const (
	defaultMaxFrames = 32
	defaultCacheSize = 4096
)

// Capturer captures call stacks for one graph.Store, memoizing repeated
// call stacks so the same few hot paths (every lock acquire, every channel
// send reached the same way) produce one BacktraceID instead of a fresh one
// per call. The memo key is the whole captured stack, so one line reached
// from two different callers yields two ids.
type Capturer struct {
	store *graph.Store

	mu       sync.Mutex
	modules  map[string]ptime.ModuleID
	manifest []graph.ModuleRecord

	cache *lru.Cache
}

// New builds a Capturer over store. cacheSize bounds the call-site memo
// cache; 0 selects a default.
func New(store *graph.Store, cacheSize int) *Capturer {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, _ := lru.New(cacheSize)
	return &Capturer{
		store:   store,
		modules: make(map[string]ptime.ModuleID),
		cache:   cache,
	}
}

// Current captures the caller's stack, skipping skip additional frames on
// top of Current itself, and returns the BacktraceID of the (possibly
// memoized) capture.
func (c *Capturer) Current(skip int) (ptime.BacktraceID, error) {
	var pcs [defaultMaxFrames]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0, nil
	}
	sig := pcSignature(pcs[:n])

	if v, ok := c.cache.Get(sig); ok {
		return v.(ptime.BacktraceID), nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	keys := make([]graph.FrameKey, 0, n)
	for {
		frame, more := frames.Next()
		key, err := c.frameKey(frame)
		if err != nil {
			return 0, err
		}
		keys = append(keys, key)
		if !more {
			break
		}
	}

	id, err := ptime.NextBacktraceID()
	if err != nil {
		return 0, err
	}
	if err := c.store.InternBacktrace(graph.BacktraceRecord{ID: id, Frames: keys}); err != nil {
		return 0, err
	}
	c.cache.Add(sig, id)
	return id, nil
}

// frameKey resolves one runtime.Frame to a (module, relative pc) pair,
// interning newly-seen modules into the store's manifest.
func (c *Capturer) frameKey(frame runtime.Frame) (graph.FrameKey, error) {
	modulePath := frame.Function
	if i := strings.LastIndex(frame.Function, "."); i >= 0 {
		modulePath = frame.Function[:i]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	modID, ok := c.modules[modulePath]
	if !ok {
		var err error
		modID, err = ptime.NextModuleID()
		if err != nil {
			return graph.FrameKey{}, err
		}
		c.modules[modulePath] = modID
		c.manifest = append(c.manifest, graph.ModuleRecord{ID: modID, Path: modulePath})
		c.store.RegisterModuleManifest(append([]graph.ModuleRecord(nil), c.manifest...))
	}

	return graph.FrameKey{ModuleID: modID, RelPC: uint64(frame.PC) - uint64(frame.Entry)}, nil
}

// pcSignature renders a PC slice as a comparable map key for the memo cache.
func pcSignature(pcs []uintptr) string {
	buf := make([]byte, len(pcs)*8)
	for i, pc := range pcs {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(pc))
	}
	return string(buf)
}
