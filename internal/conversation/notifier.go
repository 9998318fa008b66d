package conversation

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

// Compile-time interface check.
var _ domain.Observer = (*CLIObserver)(nil)

// ANSI escape codes for terminal formatting.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// CLIObserver prints orchestrator events to a plain terminal, streaming
// reply fragments inline as they arrive. Used when the full-screen UI is
// disabled.
type CLIObserver struct {
	log *logger.Logger
	mu  sync.Mutex
	out io.Writer
	mid bool // a reply line is open
}

// NewCLIObserver creates a plain-terminal observer. If out is nil,
// os.Stdout is used.
func NewCLIObserver(log *logger.Logger, out io.Writer) *CLIObserver {
	if out == nil {
		out = os.Stdout
	}
	return &CLIObserver{log: log, out: out}
}

// StateChanged prints the new voice state.
func (c *CLIObserver) StateChanged(state domain.VoiceState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLineLocked()
	fmt.Fprintf(c.out, "%s[%s]%s\n", dim, state, reset)
}

// Transcript prints what the user said.
func (c *CLIObserver) Transcript(turnID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLineLocked()
	fmt.Fprintf(c.out, "%s%stú:%s %s\n", yellow, bold, reset, text)
}

// ResponseFragment streams reply text inline.
func (c *CLIObserver) ResponseFragment(turnID, fragment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mid {
		fmt.Fprintf(c.out, "%s%sastra:%s ", cyan, bold, reset)
		c.mid = true
	}
	fmt.Fprint(c.out, fragment)
}

// ResponseDone closes the reply line.
func (c *CLIObserver) ResponseDone(turnID, final string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Debug("reply %s done (%d chars)", turnID, len(final))
	c.endLineLocked()
}

// Alert prints an urgent message in bold red.
func (c *CLIObserver) Alert(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Debug("alert: %s", message)
	c.endLineLocked()
	fmt.Fprintf(c.out, "%s%s%s%s\n", red, bold, message, reset)
}

func (c *CLIObserver) endLineLocked() {
	if c.mid {
		fmt.Fprintln(c.out)
		c.mid = false
	}
}
