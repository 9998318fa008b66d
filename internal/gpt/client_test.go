package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

func testLog() *logger.Logger { return logger.New(logger.LevelOff, nil) }

func collect(t *testing.T, seq func(func(string, error) bool)) ([]string, error) {
	t.Helper()
	var out []string
	for frag, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, frag)
	}
	return out, nil
}

func sseServer(t *testing.T, lines ...string) (*httptest.Server, *payload) {
	t.Helper()
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n\n", l)
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func delta(s string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, s)
}

func TestStreamChatYieldsDeltas(t *testing.T) {
	srv, got := sseServer(t,
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		delta("Hace "),
		`data: {not json`,
		": keep-alive",
		delta("22.5 grados."),
		`data: {"choices":[]}`,
		"data: [DONE]",
		delta("ignorado"),
	)

	c := NewClient(srv.URL, "sk-test", testLog(), WithModel("gpt-test"))
	req := domain.ChatRequest{
		Messages:    []domain.ChatMessage{{Role: domain.RoleUser, Content: "hola"}},
		Temperature: 0.5,
		MaxTokens:   100,
		Stream:      true,
	}
	frags, err := collect(t, c.StreamChat(context.Background(), req))
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if strings.Join(frags, "") != "Hace 22.5 grados." {
		t.Errorf("fragments = %q", frags)
	}

	if got.Model != "gpt-test" || !got.Stream || got.MaxTokens != 100 || got.Temperature != 0.5 {
		t.Errorf("unexpected payload %+v", *got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hola" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestStreamChatNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", testLog())
	frags, err := collect(t, c.StreamChat(context.Background(), domain.ChatRequest{}))
	if !errors.Is(err, domain.ErrChatStatus) {
		t.Fatalf("err = %v, want ErrChatStatus", err)
	}
	if len(frags) != 0 {
		t.Errorf("unexpected fragments %q", frags)
	}
}

func TestStreamChatStopsWhenConsumerBreaks(t *testing.T) {
	srv, _ := sseServer(t, delta("uno"), delta("dos"), delta("tres"), "data: [DONE]")
	c := NewClient(srv.URL, "sk-test", testLog())

	var seen []string
	for frag, err := range c.StreamChat(context.Background(), domain.ChatRequest{}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen = append(seen, frag)
		if len(seen) == 2 {
			break
		}
	}
	if len(seen) != 2 {
		t.Errorf("seen = %q", seen)
	}
}

func TestStreamChatConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "sk-test", testLog())
	if _, err := collect(t, c.StreamChat(context.Background(), domain.ChatRequest{})); err == nil {
		t.Fatal("expected connection error")
	}
}
