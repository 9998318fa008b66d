package speech

import (
	"strings"
	"unicode"
)

// BufferOption configures a SentenceBuffer.
type BufferOption func(*SentenceBuffer)

// WithOverflow sets the length (in runes) above which text with no sentence
// boundary is force-split, and the lowest position searched for a fallback
// terminator.
func WithOverflow(threshold, floor int) BufferOption {
	return func(b *SentenceBuffer) {
		if threshold > 0 {
			b.overflowAt = threshold
		}
		if floor >= 0 && floor < b.overflowAt {
			b.floor = floor
		}
	}
}

// SentenceBuffer accumulates streamed text fragments and emits complete
// sentence units as soon as they can be identified. It is owned by a single
// turn and is not safe for concurrent use.
type SentenceBuffer struct {
	buf        []rune
	overflowAt int
	floor      int
}

// NewSentenceBuffer creates an empty buffer.
func NewSentenceBuffer(opts ...BufferOption) *SentenceBuffer {
	b := &SentenceBuffer{
		overflowAt: DefaultOverflowAt,
		floor:      DefaultOverflowFloor,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Feed appends a fragment and returns every unit that became complete,
// in order. Units are trimmed and never empty.
func (b *SentenceBuffer) Feed(fragment string) []string {
	b.buf = append(b.buf, []rune(fragment)...)

	var units []string
	for {
		cut := b.boundary()
		if cut < 0 && len(b.buf) > b.overflowAt {
			cut = b.overflowCut()
		}
		if cut < 0 {
			return units
		}
		unit := strings.TrimSpace(string(b.buf[:cut]))
		b.buf = []rune(strings.TrimSpace(string(b.buf[cut:])))
		if unit != "" {
			units = append(units, unit)
		}
	}
}

// Flush returns whatever text remains (trimmed) and empties the buffer.
func (b *SentenceBuffer) Flush() string {
	rest := strings.TrimSpace(string(b.buf))
	b.buf = b.buf[:0]
	return rest
}

// Reset discards buffered text.
func (b *SentenceBuffer) Reset() {
	b.buf = b.buf[:0]
}

// Len returns the number of buffered runes.
func (b *SentenceBuffer) Len() int { return len(b.buf) }

// boundary returns the cut position just after the first accepted
// terminator, or -1.
func (b *SentenceBuffer) boundary() int {
	last := len(b.buf) - 1
	for i, r := range b.buf {
		if !isTerminator(r) || b.isDecimalPoint(i) {
			continue
		}
		if i == last {
			// "22." may still become "22.5": wait for the next fragment.
			if r == '.' && i > 0 && isDigit(b.buf[i-1]) {
				return -1
			}
			return i + 1
		}
		if next := b.buf[i+1]; next == ' ' || next == '\n' {
			return i + 1
		}
	}
	return -1
}

// overflowCut looks back from the threshold for a usable terminator and
// otherwise cuts exactly at the threshold.
func (b *SentenceBuffer) overflowCut() int {
	for i := b.overflowAt - 1; i >= b.floor; i-- {
		if isTerminator(b.buf[i]) && !b.isDecimalPoint(i) {
			return i + 1
		}
	}
	return b.overflowAt
}

func (b *SentenceBuffer) isDecimalPoint(i int) bool {
	return i > 0 && i < len(b.buf)-1 && isDigit(b.buf[i-1]) && isDigit(b.buf[i+1])
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isDigit(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsDigit(r)
}
