package gpt

import (
	"context"
	"iter"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

// DefaultHistoryTurns is how many past exchanges are replayed to the model.
const DefaultHistoryTurns = 4

// AgentOption configures the Agent.
type AgentOption func(*Agent)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) AgentOption {
	return func(a *Agent) { a.temperature = t }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) AgentOption {
	return func(a *Agent) { a.maxTokens = n }
}

// WithHistory replays up to n recent exchanges from log. n <= 0 disables history.
func WithHistory(log domain.TranscriptLog, n int) AgentOption {
	return func(a *Agent) {
		a.history = log
		a.historyTurns = n
	}
}

// Agent turns a transcript and a sensor snapshot into a chat request and
// streams the reply. It is the single entry point the orchestrator calls.
type Agent struct {
	streamer     domain.ChatStreamer
	history      domain.TranscriptLog
	historyTurns int
	temperature  float64
	maxTokens    int
	log          *logger.Logger
}

// NewAgent creates an agent backed by streamer.
func NewAgent(streamer domain.ChatStreamer, log *logger.Logger, opts ...AgentOption) *Agent {
	a := &Agent{
		streamer:    streamer,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		log:         log,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Stream dispatches transcript with the sensor snapshot and yields reply fragments.
func (a *Agent) Stream(ctx context.Context, transcript string, sensors domain.SensorSnapshot) iter.Seq2[string, error] {
	return a.streamer.StreamChat(ctx, a.BuildRequest(ctx, transcript, sensors))
}

// BuildRequest assembles the system prompt, the sensor context, recent
// history and the user's transcript.
func (a *Agent) BuildRequest(ctx context.Context, transcript string, sensors domain.SensorSnapshot) domain.ChatRequest {
	msgs := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: PromptSystem},
		{Role: domain.RoleSystem, Content: sensorContext(sensors)},
	}

	if a.history != nil && a.historyTurns > 0 {
		recent, err := a.history.Recent(ctx, a.historyTurns)
		if err != nil {
			a.log.Warn("gpt: loading history: %v", err)
		}
		for _, ex := range recent {
			if ex.Failed || ex.Assistant == "" {
				continue
			}
			msgs = append(msgs,
				domain.ChatMessage{Role: domain.RoleUser, Content: ex.User},
				domain.ChatMessage{Role: domain.RoleAssistant, Content: ex.Assistant},
			)
		}
	}

	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: transcript})
	return domain.ChatRequest{
		Messages:    msgs,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
		Stream:      true,
		Sensors:     sensors,
	}
}
