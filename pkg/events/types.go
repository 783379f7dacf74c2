package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	TranscriptionCompleted EventType = "transcription.completed"
	TranscriptionFailed    EventType = "transcription.failed"
	TuningReloaded         EventType = "tuning.reloaded"
)

// Envelope is the standard event wrapper published to the event bus.
// SessionID carries the request id of the transcription.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// TranscriptionCompletedData is the payload for transcription.completed.
type TranscriptionCompletedData struct {
	Filename       string  `json:"filename"`
	Format         string  `json:"format"`
	Shape          string  `json:"shape"` // "unary" or "stream"
	Backend        string  `json:"backend"`
	AudioDuration  float64 `json:"audio_duration"`
	ProcessingTime float64 `json:"processing_time"`
	WordCount      int     `json:"word_count"`
	CharCount      int     `json:"char_count"`
	ChunkCount     int     `json:"chunk_count"`
	DroppedChunks  int     `json:"dropped_chunks"`
}

// TranscriptionFailedData is the payload for transcription.failed.
type TranscriptionFailedData struct {
	Filename       string  `json:"filename"`
	Format         string  `json:"format"`
	Shape          string  `json:"shape"`
	Stage          string  `json:"stage"` // "validate" or "transcribe"
	Error          string  `json:"error"`
	ProcessingTime float64 `json:"processing_time"`
}

// TuningReloadedData is the payload for tuning.reloaded.
type TuningReloadedData struct {
	Path             string  `json:"path"`
	BatchSize        int     `json:"batch_size"`
	ChunkDurationSec float64 `json:"chunk_duration_sec"`
	DropPolicy       string  `json:"drop_policy"`
}
