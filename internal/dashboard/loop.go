//go:build moire_instrument

// Package dashboard implements the push loop that ships the live graph to a
// companion collector process: one long-lived TCP session per connection
// attempt, a handshake sent once (and re-sent only when the module manifest
// changes), a fixed-cadence delta pull, and replies to server-initiated cut
// and snapshot requests.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/metrics"
	"github.com/moire-rt/moire/internal/ptime"
	"github.com/moire-rt/moire/internal/wire"
)

const (
	reconnectDelay = 500 * time.Millisecond
	tickInterval   = 100 * time.Millisecond
	pullBatchMax   = 2048
)

// Loop owns one dashboard session lifecycle against a single collector
// address, reconnecting on any I/O failure.
type Loop struct {
	store *graph.Store
	addr  string
	log   *zap.Logger

	process string
	pid     uint32
	args    []string
	env     []string
}

// New builds a Loop that will dial addr and stream store's changes to it.
func New(store *graph.Store, addr string, log *zap.Logger) *Loop {
	return &Loop{
		store:   store,
		addr:    addr,
		log:     log,
		process: os.Args[0],
		pid:     uint32(os.Getpid()),
		args:    append([]string(nil), os.Args[1:]...),
		env:     os.Environ(),
	}
}

// Start reads MOIRE_DASHBOARD and, if set, spawns the push loop in the
// background. The returned stop func cancels it; calling Start with the
// variable unset is a no-op stop func.
func Start(store *graph.Store, log *zap.Logger) (stop func()) {
	addr := os.Getenv("MOIRE_DASHBOARD")
	if addr == "" {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	loop := New(store, addr, log)
	go func() {
		if err := loop.Run(ctx); err != nil {
			log.Error("dashboard push loop exited", zap.Error(err))
		}
	}()
	return cancel
}

// Run retries the session forever (constant 500ms backoff) until ctx is
// canceled.
func (l *Loop) Run(ctx context.Context) error {
	op := func() error {
		err := l.session(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err != nil && l.log != nil {
			l.log.Warn("dashboard session ended, reconnecting", zap.Error(err))
		}
		return err
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(reconnectDelay), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
	return nil
}

type inboundMsg struct {
	msg wire.ServerMessage
	err error
}

// session runs one TCP connection's worth of the protocol: connect, write
// magic, handshake, then a delay-ticker-driven delta push alternating with
// inbound cut/snapshot handling, until any I/O error or ctx cancellation.
func (l *Loop) session(ctx context.Context) error {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("dashboard: dial %s: %w", l.addr, err)
	}
	defer conn.Close()
	metrics.DashboardReconnects.Inc()
	metrics.DashboardConnected.Set(1)
	defer metrics.DashboardConnected.Set(0)

	if err := wire.WriteMagic(conn); err != nil {
		return fmt.Errorf("dashboard: write magic: %w", err)
	}

	lastSentManifestRevision := uint64(math.MaxUint64)
	if err := l.sendHandshakeIfChanged(conn, &lastSentManifestRevision); err != nil {
		return err
	}

	var cursor ptime.SeqNo
	var lastSentBacktraceID ptime.BacktraceID

	stop := make(chan struct{})
	defer close(stop)

	inbound := make(chan inboundMsg, 1)
	go func() {
		for {
			msg, err := wire.DecodeServerMessageDefault(conn)
			select {
			case inbound <- inboundMsg{msg: msg, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	// MissedTickBehavior::Delay: the timer is re-armed only once a tick has
	// been handled, so a late tick slides the next one forward rather than
	// bursting.
	ticker := time.NewTimer(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.store.ReportMetrics()
			if err := l.pushTick(conn, &cursor, &lastSentBacktraceID); err != nil {
				return err
			}
			ticker.Reset(tickInterval)
		case in := <-inbound:
			if in.err != nil {
				return fmt.Errorf("dashboard: read: %w", in.err)
			}
			if err := l.handleInbound(conn, in.msg, &lastSentBacktraceID); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) sendHandshakeIfChanged(conn net.Conn, lastSentManifestRevision *uint64) error {
	modules, revision := l.store.ModuleManifest()
	if revision == *lastSentManifestRevision {
		return nil
	}
	hs := wire.Handshake{
		ProcessName: l.process,
		PID:         l.pid,
		Args:        l.args,
		Env:         l.env,
		ModuleManifest: wire.ModuleManifest{
			Revision: revision,
			Modules:  modules,
		},
	}
	if err := wire.EncodeClientMessageDefault(conn, wire.NewHandshakeMessage(hs)); err != nil {
		return fmt.Errorf("dashboard: send handshake: %w", err)
	}
	*lastSentManifestRevision = revision
	return nil
}

func (l *Loop) flushBacktraces(conn net.Conn, lastSent *ptime.BacktraceID) error {
	for _, rec := range l.store.BacktracesAfter(*lastSent) {
		if err := wire.EncodeClientMessageDefault(conn, wire.NewBacktraceRecordMessage(rec)); err != nil {
			return fmt.Errorf("dashboard: send backtrace record: %w", err)
		}
		if rec.ID > *lastSent {
			*lastSent = rec.ID
		}
	}
	return nil
}

// pushTick pulls changes since cursor and, if there's anything to report
// (new changes, truncation, or a compaction shift), flushes new backtraces
// ahead of the delta batch. The cursor always advances to the batch's
// reported next seq no.
func (l *Loop) pushTick(conn net.Conn, cursor *ptime.SeqNo, lastSentBacktraceID *ptime.BacktraceID) error {
	batch := l.store.PullChangesSince(*cursor, pullBatchMax)

	changed := len(batch.Changes) > 0 || batch.Truncated || batch.CompactedBeforeSeqNo != nil
	if changed {
		if err := l.flushBacktraces(conn, lastSentBacktraceID); err != nil {
			return err
		}
		if err := wire.EncodeClientMessageDefault(conn, wire.NewDeltaBatchMessage(batch)); err != nil {
			return fmt.Errorf("dashboard: send delta batch: %w", err)
		}
		metrics.DashboardBatchesSent.Inc()
		metrics.DashboardChangesSent.Add(float64(len(batch.Changes)))
	}
	if batch.NextSeqNo > *cursor {
		*cursor = batch.NextSeqNo
	}
	return nil
}

func (l *Loop) handleInbound(conn net.Conn, msg wire.ServerMessage, lastSentBacktraceID *ptime.BacktraceID) error {
	switch msg.Tag {
	case wire.ServerCutRequest:
		if err := l.flushBacktraces(conn, lastSentBacktraceID); err != nil {
			return err
		}
		ack := l.store.AckCut(msg.CutRequest.CutID)
		return wire.EncodeClientMessageDefault(conn, wire.NewCutAckMessage(wire.CutAck{
			CutID:  ack.CutID,
			Cursor: ack.Cursor.NextSeqNo,
		}))
	case wire.ServerSnapshotRequest:
		if err := l.flushBacktraces(conn, lastSentBacktraceID); err != nil {
			return err
		}
		state := l.store.Snapshot()
		return wire.EncodeSnapshotDefault(conn, wire.Snapshot{
			SnapshotID: msg.SnapshotRequest.SnapshotID,
			Entities:   state.Entities,
			Scopes:     state.Scopes,
			Edges:      state.Edges,
			Cursor:     state.Cursor,
			Backtraces: state.Backtraces,
		})
	default:
		return fmt.Errorf("dashboard: unknown server message tag %q", msg.Tag)
	}
}
