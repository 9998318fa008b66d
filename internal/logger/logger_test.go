package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		level     Level
		wantDebug bool
		wantInfo  bool
	}{
		{LevelOff, false, false},
		{LevelNormal, false, true},
		{LevelVerbose, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			l := New(tt.level, &buf)
			l.Debug("dbg %d", 1)
			l.Info("inf %d", 2)

			out := buf.String()
			if got := strings.Contains(out, "dbg 1"); got != tt.wantDebug {
				t.Errorf("debug present = %v, want %v (out=%q)", got, tt.wantDebug, out)
			}
			if got := strings.Contains(out, "inf 2"); got != tt.wantInfo {
				t.Errorf("info present = %v, want %v (out=%q)", got, tt.wantInfo, out)
			}
		})
	}
}

func TestWithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := New(LevelOff, &buf)
	child := root.With("mouth")

	child.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	root.SetLevel(LevelNormal)
	child.Warn("queue full")
	out := buf.String()
	if !strings.Contains(out, "queue full") || !strings.Contains(out, "component=mouth") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"off": LevelOff, "normal": LevelNormal, "debug": LevelVerbose} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	var l *Logger
	l.Info("no panic")
}
