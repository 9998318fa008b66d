package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hammamikhairi/astra/internal/display"
	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/engine"
	"github.com/hammamikhairi/astra/internal/logger"
	"github.com/hammamikhairi/astra/internal/speech"
)

const byeTimeout = 3 * time.Second

type app struct {
	orch     *engine.Orchestrator
	mouth    *speech.Mouth
	log      *logger.Logger
	offline  bool
	voice    bool
	wakeword bool
}

// runUI runs the full-screen front end until the user quits or ctx ends.
func (a *app) runUI(ctx context.Context, ui *display.UI) error {
	fmt.Println(display.RenderBanner())
	for _, line := range a.hints() {
		fmt.Println(display.BannerStyle.Render("  " + line))
	}
	fmt.Println()

	go func() {
		ui.WaitReady()
		if a.offline {
			ui.PrintUrgent(speech.LineOfflineMode())
		}
		a.orch.Greet(ctx)
	}()

	if err := ui.Run(ctx); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	a.shutdown(ctx)
	return nil
}

// runPlain reads commands line by line. An empty line toggles capture;
// anything else is sent as typed text.
func (a *app) runPlain(ctx context.Context, in io.Reader, out io.Writer) error {
	for _, line := range a.hints() {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, "Comandos: línea vacía = hablar/parar, /ok, /no, /cancelar, /salir.")
	if a.offline {
		fmt.Fprintln(out, speech.LineOfflineMode())
	}
	a.orch.Greet(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			a.shutdown(ctx)
			return nil
		case line, ok := <-lines:
			if !ok {
				a.shutdown(ctx)
				return nil
			}
			if quit := a.handleLine(ctx, strings.TrimSpace(line)); quit {
				a.shutdown(ctx)
				return nil
			}
		}
	}
}

func (a *app) handleLine(ctx context.Context, line string) (quit bool) {
	var err error
	switch line {
	case "/salir", "/quit", "salir":
		return true
	case "":
		if a.orch.State() == domain.StateListening && a.orch.Pending() == "" {
			err = a.orch.StopCapture()
		} else {
			err = a.orch.StartCapture(ctx)
		}
	case "/ok":
		err = a.orch.Confirm(ctx)
	case "/no":
		err = a.orch.Discard()
	case "/cancelar":
		a.orch.Cancel()
	default:
		err = a.orch.Submit(ctx, line)
	}
	if err != nil && !errors.Is(err, domain.ErrMicrophoneUnavailable) {
		a.log.Debug("command %q: %v", line, err)
	}
	return false
}

func (a *app) hints() []string {
	var h []string
	switch {
	case a.wakeword:
		h = append(h, "Di \"oye Astra\" o pulsa Espacio para hablar.")
	case a.voice:
		h = append(h, "Pulsa Espacio para hablar ("+a.orch.Mode().String()+"), Tab cambia el modo.")
	default:
		h = append(h, "Micrófono desactivado: escribe tus preguntas.")
	}
	h = append(h, "Enter envía o confirma, Esc cancela, Ctrl+C sale.")
	return h
}

// shutdown says goodbye and gives the line a moment to play. Nothing is
// spoken once ctx is done because the playback loop has already stopped.
func (a *app) shutdown(ctx context.Context) {
	a.orch.Cancel()
	hits, misses := a.mouth.Cache().Stats()
	a.log.Debug("audio cache: %d hits, %d misses", hits, misses)
	if ctx.Err() != nil {
		return
	}
	a.mouth.Enqueue(speech.LineBye())
	waitCtx, cancel := context.WithTimeout(context.Background(), byeTimeout)
	defer cancel()
	_ = a.mouth.WaitIdle(waitCtx)
}
