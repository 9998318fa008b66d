package gpt

import (
	"context"
	"iter"
	"time"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

// DefaultOfflineDelay is the pause between streamed characters offline.
const DefaultOfflineDelay = 25 * time.Millisecond

// Responder produces a complete canned reply for a question.
type Responder interface {
	Respond(question string, sensors domain.SensorSnapshot) string
}

var _ domain.ChatStreamer = (*OfflineStreamer)(nil)

// OfflineStreamer answers without a network by streaming a canned reply
// one character at a time, so the rest of the pipeline behaves exactly
// as it does with a live model.
type OfflineStreamer struct {
	responder Responder
	delay     time.Duration
	log       *logger.Logger
}

// NewOfflineStreamer creates an offline streamer. A delay of zero or less
// uses DefaultOfflineDelay.
func NewOfflineStreamer(r Responder, delay time.Duration, log *logger.Logger) *OfflineStreamer {
	if delay <= 0 {
		delay = DefaultOfflineDelay
	}
	return &OfflineStreamer{responder: r, delay: delay, log: log}
}

// StreamChat yields the canned reply to the last user message.
func (o *OfflineStreamer) StreamChat(ctx context.Context, req domain.ChatRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		reply := o.responder.Respond(req.LastUserMessage(), req.Sensors)
		o.log.Debug("offline: replying with %d chars", len(reply))

		ticker := time.NewTicker(o.delay)
		defer ticker.Stop()
		for _, r := range reply {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if !yield(string(r), nil) {
				return
			}
		}
	}
}
