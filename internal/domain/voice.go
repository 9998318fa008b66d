// Package domain defines the core types and interfaces for the home assistant.
// All other packages depend on domain; domain depends on nothing.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// VoiceState is the externally visible state of the assistant.
type VoiceState int

const (
	StateInactive VoiceState = iota
	StateListening
	StateResponding
)

// String returns the lowercase state name shown in the UI.
func (s VoiceState) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateResponding:
		return "responding"
	default:
		return "inactive"
	}
}

// TurnMode selects how the user hands a turn to the assistant.
type TurnMode int

const (
	// ModeTap starts capture on one press and ends it on the next
	// (or when the recognizer decides the utterance is over).
	ModeTap TurnMode = iota
	// ModeHold captures while the talk key is held.
	ModeHold
	// ModeConfirm keeps the transcript pending until the user confirms it.
	ModeConfirm
)

func (m TurnMode) String() string {
	switch m {
	case ModeHold:
		return "hold"
	case ModeConfirm:
		return "confirm"
	default:
		return "tap"
	}
}

// ParseTurnMode converts "tap", "hold" or "confirm" into a TurnMode.
func ParseTurnMode(s string) (TurnMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tap":
		return ModeTap, nil
	case "hold", "hold-to-talk":
		return ModeHold, nil
	case "confirm", "confirm-before-send":
		return ModeConfirm, nil
	}
	return ModeTap, fmt.Errorf("unknown turn mode %q", s)
}

// Turn is one user utterance and the assistant's reply to it.
// Response grows while fragments stream in; Final is set once at stream end.
type Turn struct {
	ID         string
	Transcript string
	Response   string
	Final      string
	StartedAt  time.Time
}

// Exchange is a completed turn kept in the transcript log.
type Exchange struct {
	TurnID    string
	User      string
	Assistant string
	At        time.Time
	Failed    bool
}
