package hub

import (
	"context"
	"errors"

	"github.com/Jeffail/leaps/lib/text"
	"go.uber.org/zap"

	"workhub/internal/models"
)

var ErrVersionMismatch = errors.New("version_mismatch")

// board is the authoritative shared-text document for one room. Deltas pass
// through an OT buffer so concurrent edits against a recent base version are
// transformed instead of rejected. Reactor only.
type board struct {
	buffer  *text.OTBuffer
	content string
	version int
	dirty   bool
}

// Versions are 1-based to stay in lockstep with the OT buffer: a fresh empty
// document is version 1 and the first accepted delta produces version 2.
func newBoard() *board {
	buf := text.NewOTBuffer("", text.NewOTBufferConfig())
	return &board{buffer: buf, version: buf.Version}
}

// board returns the room's document, creating it empty on first touch.
func (h *Hub) board(roomID string) *board {
	b, ok := h.boards[roomID]
	if !ok {
		b = newBoard()
		h.boards[roomID] = b
	}
	return b
}

func (b *board) snapshot() models.BoardDoc {
	return models.BoardDoc{Text: b.content, Version: b.version}
}

// apply pushes one delta through the OT buffer and flushes it into the
// document. The returned delta is the transformed one to fan out.
func (b *board) apply(d models.BoardDelta) (models.BoardDelta, error) {
	if d.BaseVersion != b.version {
		return models.BoardDelta{}, ErrVersionMismatch
	}
	applied, version, err := b.buffer.PushTransform(text.OTransform{
		Position: d.Position,
		Delete:   d.Delete,
		Insert:   d.Insert,
		Version:  b.version + 1,
	})
	if err != nil {
		return models.BoardDelta{}, err
	}
	if _, err := b.buffer.FlushTransforms(&b.content, 60); err != nil {
		return models.BoardDelta{}, err
	}
	b.version = version
	b.dirty = true
	return models.BoardDelta{
		BaseVersion: d.BaseVersion,
		Position:    applied.Position,
		Delete:      applied.Delete,
		Insert:      applied.Insert,
		Version:     version,
	}, nil
}

// DirtySnapshots hands out every modified board and clears the dirty marks.
// The cron flusher persists them off the reactor.
func (h *Hub) DirtySnapshots() map[string]models.BoardDoc {
	out := make(map[string]models.BoardDoc)
	h.call(func() {
		for roomID, b := range h.boards {
			if b.dirty {
				b.dirty = false
				out[roomID] = b.snapshot()
			}
		}
	})
	return out
}

func (h *Hub) persistBoard(roomID string, doc models.BoardDoc) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.PersistTimeout)
	defer cancel()
	if err := h.hist.WriteBoardSnapshot(ctx, roomID, doc); err != nil {
		h.log.Error("board snapshot write failed", zap.String("roomId", roomID), zap.Error(err))
	}
}

// flushAllBoards runs during teardown, synchronously, so shutdown does not
// race the writes.
func (h *Hub) flushAllBoards() {
	for roomID, b := range h.boards {
		if b.dirty {
			b.dirty = false
			h.persistBoard(roomID, b.snapshot())
		}
	}
}
