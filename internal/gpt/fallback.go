package gpt

import (
	"context"
	"iter"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
	"github.com/hammamikhairi/astra/internal/observe"
)

var _ domain.ChatStreamer = (*FallbackStreamer)(nil)

// FallbackStreamer serves a request from primary and, when primary fails
// before producing any text, replays it once against secondary. An error
// after text was already streamed is passed through: the listener has
// heard part of an answer and a second one would not make sense.
type FallbackStreamer struct {
	primary   domain.ChatStreamer
	secondary domain.ChatStreamer
	metrics   *observe.Metrics
	log       *logger.Logger
}

// NewFallbackStreamer wraps primary with a single fallback path.
func NewFallbackStreamer(primary, secondary domain.ChatStreamer, metrics *observe.Metrics, log *logger.Logger) *FallbackStreamer {
	return &FallbackStreamer{primary: primary, secondary: secondary, metrics: metrics, log: log}
}

// StreamChat implements domain.ChatStreamer.
func (f *FallbackStreamer) StreamChat(ctx context.Context, req domain.ChatRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		produced := false
		for frag, err := range f.primary.StreamChat(ctx, req) {
			if err != nil {
				f.metrics.RecordChatError(ctx, "primary")
				if produced || ctx.Err() != nil {
					yield("", err)
					return
				}
				f.log.Warn("gpt: primary stream failed, using fallback: %v", err)
				for frag, err := range f.secondary.StreamChat(ctx, req) {
					if err != nil {
						f.metrics.RecordChatError(ctx, "fallback")
					}
					if !yield(frag, err) || err != nil {
						return
					}
				}
				return
			}
			produced = true
			if !yield(frag, nil) {
				return
			}
		}
	}
}
