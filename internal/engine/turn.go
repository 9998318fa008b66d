package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/speech"
)

// turn is everything the orchestrator tracks for one utterance and its
// reply. A turn is owned by the orchestrator and replaced, never reused.
type turn struct {
	domain.Turn

	ctx    context.Context
	cancel context.CancelFunc
	ear    domain.Recognizer
	buffer *speech.SentenceBuffer

	// pending holds a transcript awaiting Confirm in ModeConfirm.
	pending string
}

func newTurn(parent context.Context, bufOpts []speech.BufferOption) *turn {
	ctx, cancel := context.WithCancel(parent)
	return &turn{
		Turn: domain.Turn{
			ID:        uuid.NewString(),
			StartedAt: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
		buffer: speech.NewSentenceBuffer(bufOpts...),
	}
}

func (t *turn) exchange(failed bool) domain.Exchange {
	return domain.Exchange{
		TurnID:    t.ID,
		User:      t.Transcript,
		Assistant: t.Final,
		At:        time.Now(),
		Failed:    failed,
	}
}
