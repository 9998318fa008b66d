package speech

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func feedAll(b *SentenceBuffer, fragments []string) []string {
	var units []string
	for _, f := range fragments {
		units = append(units, b.Feed(f)...)
	}
	if rest := b.Flush(); rest != "" {
		units = append(units, rest)
	}
	return units
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestSentenceBufferSplits(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      []string
	}{
		{
			name:      "decimal kept intact",
			fragments: []string{"22.5 grados. Listo."},
			want:      []string{"22.5 grados.", "Listo."},
		},
		{
			name:      "decimal across fragments",
			fragments: []string{"Hace 22", ".", "5 grados", ". Listo."},
			want:      []string{"Hace 22.5 grados.", "Listo."},
		},
		{
			name:      "number ending a sentence waits for more text",
			fragments: []string{"La humedad es 55.", " Todo bien."},
			want:      []string{"La humedad es 55.", "Todo bien."},
		},
		{
			name:      "question and exclamation",
			fragments: []string{"¿Qué tal? ", "¡Muy bien! Adiós"},
			want:      []string{"¿Qué tal?", "¡Muy bien!", "Adiós"},
		},
		{
			name:      "terminator not followed by space",
			fragments: []string{"Visita astra.local hoy. Fin"},
			want:      []string{"Visita astra.local hoy.", "Fin"},
		},
		{
			name:      "newline after terminator",
			fragments: []string{"Primera.\nSegunda."},
			want:      []string{"Primera.", "Segunda."},
		},
		{
			name:      "whitespace only",
			fragments: []string{"   ", "\n"},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feedAll(NewSentenceBuffer(), tt.fragments)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d units %q, want %d %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("unit %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSentenceBufferEmitsEagerly(t *testing.T) {
	b := NewSentenceBuffer()
	if got := b.Feed("Hola"); len(got) != 0 {
		t.Fatalf("unexpected units %q", got)
	}
	got := b.Feed(". ¿Cómo")
	if len(got) != 1 || got[0] != "Hola." {
		t.Fatalf("got %q, want [Hola.]", got)
	}
	if b.Flush() != "¿Cómo" {
		t.Error("remainder not kept")
	}
	if b.Len() != 0 {
		t.Error("flush did not empty the buffer")
	}
}

func TestSentenceBufferReconstruction(t *testing.T) {
	text := "La temperatura es de 22.5 grados. La humedad está en 48%. " +
		"¿Quieres que encienda la luz? ¡Claro que sí! El CO2 marca 410.5 ppm y todo va bien."

	splits := [][]int{
		{len(text)},
		{1, 2, 3, 5, 8, 13, 21, 34, 55, 89},
		{7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7},
	}

	for _, sizes := range splits {
		var frags []string
		rest := text
		for _, n := range sizes {
			if rest == "" {
				break
			}
			// Cut on rune boundaries.
			cut := 0
			for i := 0; i < n && cut < len(rest); i++ {
				_, w := utf8.DecodeRuneInString(rest[cut:])
				cut += w
			}
			frags = append(frags, rest[:cut])
			rest = rest[cut:]
		}
		if rest != "" {
			frags = append(frags, rest)
		}

		units := feedAll(NewSentenceBuffer(), frags)
		if got, want := stripSpace(strings.Join(units, " ")), stripSpace(text); got != want {
			t.Errorf("sizes %v: reconstruction mismatch\n got %q\nwant %q", sizes, got, want)
		}
		for _, u := range units {
			if strings.HasSuffix(u, "22.") || strings.HasSuffix(u, "410.") {
				t.Errorf("sizes %v: decimal split in %q", sizes, u)
			}
		}
	}
}

func TestSentenceBufferOverflow(t *testing.T) {
	long := strings.Repeat("palabra ", 80) // 640 runes, no terminator

	b := NewSentenceBuffer()
	var units []string
	for _, w := range strings.SplitAfter(long, " ") {
		units = append(units, b.Feed(w)...)
	}
	if len(units) == 0 {
		t.Fatal("expected forced splits")
	}
	for _, u := range units {
		if n := utf8.RuneCountInString(u); n > DefaultOverflowAt {
			t.Errorf("unit of %d runes exceeds %d", n, DefaultOverflowAt)
		}
	}
	units = append(units, b.Flush())
	if stripSpace(strings.Join(units, "")) != stripSpace(long) {
		t.Error("overflow lost text")
	}
}

func TestSentenceBufferOverflowPrefersTerminator(t *testing.T) {
	// A terminator glued to the next word never splits normally, but the
	// overflow search uses it when it lies past the floor.
	head := strings.Repeat("a", 150) + "!b"
	b := NewSentenceBuffer()
	units := b.Feed(head + strings.Repeat("c", 100))
	if len(units) == 0 {
		t.Fatal("expected an overflow split")
	}
	if !strings.HasSuffix(units[0], "!") {
		t.Errorf("first unit should end at the terminator, got %q", units[0])
	}
}

func TestWithOverflow(t *testing.T) {
	b := NewSentenceBuffer(WithOverflow(10, 2))
	units := b.Feed("abcdefghijklmnop")
	if len(units) != 1 || units[0] != "abcdefghij" {
		t.Fatalf("got %q", units)
	}
}
