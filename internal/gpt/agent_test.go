package gpt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/astra/internal/domain"
)

type fakeLog struct {
	exchanges []domain.Exchange
}

func (f *fakeLog) Append(ctx context.Context, ex domain.Exchange) error {
	f.exchanges = append(f.exchanges, ex)
	return nil
}

func (f *fakeLog) Recent(ctx context.Context, n int) ([]domain.Exchange, error) {
	if n >= len(f.exchanges) {
		return f.exchanges, nil
	}
	return f.exchanges[len(f.exchanges)-n:], nil
}

func TestBuildRequest(t *testing.T) {
	hist := &fakeLog{exchanges: []domain.Exchange{
		{User: "viejo", Assistant: "respuesta vieja"},
		{User: "falló", Failed: true},
		{User: "¿hay luz?", Assistant: "Sí, 300 lux."},
	}}
	a := NewAgent(&scriptedStreamer{}, testLog(),
		WithHistory(hist, 2),
		WithTemperature(0.3),
		WithMaxTokens(120),
	)

	snap := domain.SensorSnapshot{Temperature: 22.46, Humidity: 48.7, DoorOpen: true, TakenAt: time.Now()}
	req := a.BuildRequest(context.Background(), "¿Qué temperatura hace?", snap)

	if req.Temperature != 0.3 || req.MaxTokens != 120 || !req.Stream {
		t.Errorf("unexpected params %+v", req)
	}
	if req.Sensors != snap {
		t.Error("snapshot not attached to request")
	}

	msgs := req.Messages
	// system prompt, sensor context, one usable history exchange, the question.
	if len(msgs) != 5 {
		t.Fatalf("got %d messages: %+v", len(msgs), msgs)
	}
	if msgs[0].Content != PromptSystem {
		t.Error("first message should be the system prompt")
	}
	if !strings.Contains(msgs[1].Content, "Temperatura: 22.5 °C") || !strings.Contains(msgs[1].Content, "Humedad: 49 %") {
		t.Errorf("sensor context = %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[1].Content, "Puerta principal: abierta") {
		t.Errorf("door state missing: %q", msgs[1].Content)
	}
	if msgs[2].Content != "¿hay luz?" || msgs[3].Role != domain.RoleAssistant {
		t.Errorf("history = %+v", msgs[2:4])
	}
	if req.LastUserMessage() != "¿Qué temperatura hace?" {
		t.Errorf("last user message = %q", req.LastUserMessage())
	}
}

func TestAgentStream(t *testing.T) {
	s := &scriptedStreamer{fragments: []string{"Todo ", "bien."}}
	a := NewAgent(s, testLog())
	frags, err := collect(t, a.Stream(context.Background(), "hola", domain.SensorSnapshot{}))
	if err != nil || strings.Join(frags, "") != "Todo bien." {
		t.Errorf("got %q, %v", frags, err)
	}
}
