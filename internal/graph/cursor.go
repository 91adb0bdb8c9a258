package graph

import (
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// StreamCursor marks the next change a consumer has not yet received.
type StreamCursor struct {
	NextSeqNo ptime.SeqNo
}

// PullChangesResponse is the result of pulling changes since a cursor.
type PullChangesResponse struct {
	StreamID             string
	FromSeqNo            ptime.SeqNo
	NextSeqNo            ptime.SeqNo
	Changes              []model.StampedChange
	Truncated            bool
	CompactedBeforeSeqNo *ptime.SeqNo
}

// PullChangesSince returns contiguous changes with SeqNo >= from, at most
// max of them, ascending, plus the cursor the caller should pull from next.
// If from precedes the compaction floor the batch is empty and
// CompactedBeforeSeqNo is set — the caller must restart from a snapshot.
func (s *Store) PullChangesSince(from ptime.SeqNo, max uint32) PullChangesResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	peek := s.seq.Peek()

	if s.compactedBefore != nil && from < s.compactionFloor {
		floor := *s.compactedBefore
		return PullChangesResponse{
			FromSeqNo:            from,
			NextSeqNo:            peek,
			CompactedBeforeSeqNo: &floor,
		}
	}

	var out []model.StampedChange
	more := false
	for _, sc := range s.changes {
		if sc.SeqNo < from {
			continue
		}
		if uint32(len(out)) >= max {
			more = true
			break
		}
		out = append(out, sc)
	}

	resp := PullChangesResponse{
		FromSeqNo: from,
		Changes:   out,
		Truncated: more,
	}
	if len(out) > 0 {
		resp.NextSeqNo = out[len(out)-1].SeqNo + 1
	} else if from > peek {
		resp.NextSeqNo = from
	} else {
		resp.NextSeqNo = peek
	}
	return resp
}

// CurrentCursor returns the cursor representing "nothing further to pull".
func (s *Store) CurrentCursor() StreamCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StreamCursor{NextSeqNo: s.seq.Peek()}
}

// AckCut answers a cut request with the store's current cursor.
func (s *Store) AckCut(cutID uint64) CutAck {
	return CutAck{CutID: cutID, Cursor: s.CurrentCursor()}
}

// CutAck answers a coordinated-snapshot (cut) request with the cursor at
// the instant the ack was produced. It does not mutate state.
type CutAck struct {
	CutID  uint64
	Cursor StreamCursor
}
