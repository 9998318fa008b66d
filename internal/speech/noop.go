package speech

import (
	"context"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

var _ domain.AudioPlayer = (*NopPlayer)(nil)

// NopPlayer accepts audio and discards it. Used when no output device
// can be opened so the rest of the pipeline keeps its timing.
type NopPlayer struct {
	log *logger.Logger
}

// NewNopPlayer creates a player that plays nothing.
func NewNopPlayer(log *logger.Logger) *NopPlayer {
	return &NopPlayer{log: log}
}

// Play returns immediately.
func (n *NopPlayer) Play(ctx context.Context, audio []byte) error {
	n.log.Debug("nop player: dropped %d bytes", len(audio))
	return ctx.Err()
}

// Stop does nothing.
func (n *NopPlayer) Stop() {}
