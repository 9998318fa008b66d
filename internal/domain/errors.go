package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyListening      = errors.New("capture already in progress")
	ErrNotListening          = errors.New("no capture in progress")
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
	ErrRecognition           = errors.New("speech recognition failed")
	ErrNoPendingTranscript   = errors.New("no transcript awaiting confirmation")
	ErrEmptyInput            = errors.New("empty input")
	ErrChatStatus            = errors.New("chat endpoint returned an error status")
)
