// Package store persists completed and failed transcriptions.
package store

import (
	"github.com/pitabwire/frame/data"
)

// Status values for Record.Status.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Record is one transcription request and its outcome.
type Record struct {
	data.BaseModel

	RequestID      string  `gorm:"type:varchar(32);uniqueIndex;not null" json:"request_id"`
	Filename       string  `gorm:"type:varchar(1024)"                    json:"filename"`
	Format         string  `gorm:"type:varchar(16)"                      json:"format"`
	Shape          string  `gorm:"type:varchar(16)"                      json:"shape"`
	Backend        string  `gorm:"type:varchar(64)"                      json:"backend"`
	Status         string  `gorm:"type:varchar(20);index;not null"       json:"status"`
	Transcript     string  `gorm:"type:text"                             json:"transcript"`
	ErrorMessage   string  `gorm:"type:text"                             json:"error_message,omitempty"`
	PayloadBytes   int64   `json:"payload_bytes"`
	AudioDuration  float64 `json:"audio_duration"`
	ProcessingTime float64 `json:"processing_time"`
	WordCount      int     `json:"word_count"`
	CharCount      int     `json:"char_count"`
	ChunkCount     int     `json:"chunk_count"`
	DroppedChunks  int     `json:"dropped_chunks"`
}

func (Record) TableName() string { return "transcriptions" }
