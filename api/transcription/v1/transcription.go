// Package transcriptionv1 defines the messages of the
// scribe.transcription.v1.TranscriptionService API. Messages travel as JSON;
// byte fields are base64 encoded.
package transcriptionv1

// TranscribeAudioRequest carries a whole recording in one message.
type TranscribeAudioRequest struct {
	Filename  string `json:"filename"`
	AudioData []byte `json:"audio_data"`
	Format    string `json:"format,omitempty"`
}

// AudioChunk is one fragment of a client-streamed recording. Filename,
// Format and SampleRate are read from the first fragment only.
type AudioChunk struct {
	Filename   string `json:"filename,omitempty"`
	Format     string `json:"format,omitempty"`
	SampleRate int32  `json:"sample_rate,omitempty"`
	ChunkData  []byte `json:"chunk_data"`
}

// TranscriptionStats summarises a completed transcription.
type TranscriptionStats struct {
	WordCount     int32   `json:"word_count"`
	CharCount     int32   `json:"char_count"`
	SpeedFactor   float64 `json:"speed_factor"`
	ChunkCount    int32   `json:"chunk_count"`
	DroppedChunks int32   `json:"dropped_chunks"`
}

// TranscriptionResponse is returned for both the unary and streamed calls.
// Failures are reported in-band with Success false.
type TranscriptionResponse struct {
	Transcript     string              `json:"transcript"`
	Success        bool                `json:"success"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	ProcessingTime float64             `json:"processing_time"`
	AudioDuration  float64             `json:"audio_duration"`
	Stats          *TranscriptionStats `json:"stats,omitempty"`
	RequestId      string              `json:"request_id,omitempty"`
}

// GetStats returns Stats, or an empty value when unset.
func (r *TranscriptionResponse) GetStats() *TranscriptionStats {
	if r == nil || r.Stats == nil {
		return &TranscriptionStats{}
	}
	return r.Stats
}

type ListBackendsRequest struct{}

// BackendInfo describes a registered inference engine.
type BackendInfo struct {
	Name         string   `json:"name"`
	Models       []string `json:"models,omitempty"`
	DefaultModel string   `json:"default_model,omitempty"`
	Active       bool     `json:"active"`
}

type ListBackendsResponse struct {
	Backends []*BackendInfo `json:"backends"`
}

// GetTranscriptionRequest looks up a stored result by the request id
// returned in TranscriptionResponse.
type GetTranscriptionRequest struct {
	RequestId string `json:"request_id"`
}
