package transcription

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/voicetyped/scribe/internal/audio"
	"github.com/voicetyped/scribe/internal/audio/decode"
	"github.com/voicetyped/scribe/internal/speech/engine"
	"github.com/voicetyped/scribe/internal/transcription/pipeline"
	"github.com/voicetyped/scribe/internal/transcription/tuning"
)

type labelEngine struct {
	text func(idx int) string
}

func (l labelEngine) Infer(_ context.Context, b *engine.Batch) ([]string, error) {
	out := make([]string, b.Len())
	for i, idx := range b.Indices {
		out[i] = l.text(idx)
	}
	return out, nil
}

func (labelEngine) Models() []engine.ModelInfo { return nil }
func (labelEngine) Close() error               { return nil }

func wordsEngine() labelEngine {
	return labelEngine{text: func(idx int) string { return fmt.Sprintf("part %d", idx) }}
}

// toneWAV renders a tone with a silent second just before each multiple of
// thirty seconds.
func toneWAV(seconds int) []byte {
	const sr = audio.DefaultSampleRate
	samples := make([]float32, seconds*sr)
	for i := range samples {
		sec := i / sr
		if sec%30 == 28 {
			continue
		}
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*300*float64(i)/sr))
	}
	return audio.EncodeWAV(samples, sr)
}

func newTestTranscriber(t *testing.T, eng engine.Engine, opts Options, extra ...Option) *Transcriber {
	t.Helper()
	extra = append([]Option{WithTempDir(t.TempDir()), WithBackendName("label")}, extra...)
	return NewTranscriber(decode.Auto{WAV: decode.NewWAV()}, eng, opts, extra...)
}

func TestTranscribeLongAudio(t *testing.T) {
	tr := newTestTranscriber(t, wordsEngine(), Options{BatchSize: 2})
	res, err := tr.TranscribeBytes(context.Background(), toneWAV(65), "wav")
	if err != nil {
		t.Fatal(err)
	}
	if res.Transcript != "part 0 part 1 part 2" {
		t.Fatalf("transcript = %q", res.Transcript)
	}
	if res.ChunkCount != 3 || res.BatchCount != 2 || res.DroppedChunks != 0 {
		t.Errorf("chunks=%d batches=%d dropped=%d", res.ChunkCount, res.BatchCount, res.DroppedChunks)
	}
	if math.Abs(res.AudioDuration-65) > 1e-6 {
		t.Errorf("duration = %v", res.AudioDuration)
	}
	if res.WordCount != 6 || res.CharCount != len(res.Transcript) {
		t.Errorf("words=%d chars=%d", res.WordCount, res.CharCount)
	}
	if res.SpeedFactor <= 0 || res.Backend != "label" {
		t.Errorf("speed=%v backend=%q", res.SpeedFactor, res.Backend)
	}
	if res.Timings.Total < res.Timings.Pipeline {
		t.Errorf("timings inconsistent: %+v", res.Timings)
	}
}

func TestTranscribeShortAudioSingleChunk(t *testing.T) {
	tr := newTestTranscriber(t, wordsEngine(), DefaultOptions())
	res, err := tr.TranscribeBytes(context.Background(), toneWAV(3), "wav")
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunkCount != 1 || res.Transcript != "part 0" {
		t.Fatalf("chunks=%d transcript=%q", res.ChunkCount, res.Transcript)
	}
}

func TestTranscribeCountsRunes(t *testing.T) {
	eng := labelEngine{text: func(int) string { return "héllo wörld" }}
	res, err := newTestTranscriber(t, eng, DefaultOptions()).TranscribeBytes(context.Background(), toneWAV(2), "wav")
	if err != nil {
		t.Fatal(err)
	}
	if res.CharCount != 11 || res.WordCount != 2 {
		t.Fatalf("chars=%d words=%d", res.CharCount, res.WordCount)
	}
}

func TestTranscribeEmptyResult(t *testing.T) {
	eng := labelEngine{text: func(int) string { return "  " }}
	_, err := newTestTranscriber(t, eng, DefaultOptions()).TranscribeBytes(context.Background(), toneWAV(2), "wav")
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
}

func TestTranscribeDecodeError(t *testing.T) {
	tr := newTestTranscriber(t, wordsEngine(), DefaultOptions())
	_, err := tr.TranscribeBytes(context.Background(), []byte("ID3 not really an mp3"), "mp3")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

type failingEngine struct{ labelEngine }

func (f failingEngine) Infer(ctx context.Context, b *engine.Batch) ([]string, error) {
	if b.Seq == 0 {
		return nil, errors.New("out of memory")
	}
	return f.labelEngine.Infer(ctx, b)
}

func TestTranscribeReportsDroppedChunks(t *testing.T) {
	tr := newTestTranscriber(t, failingEngine{wordsEngine()}, Options{BatchSize: 1})
	res, err := tr.TranscribeBytes(context.Background(), toneWAV(65), "wav")
	if err != nil {
		t.Fatal(err)
	}
	if res.DroppedChunks != 1 || res.Transcript != "part 1 part 2" {
		t.Fatalf("dropped=%d transcript=%q", res.DroppedChunks, res.Transcript)
	}

	abort := newTestTranscriber(t, failingEngine{wordsEngine()}, Options{
		BatchSize: 1,
		Policy:    pipeline.Policy{Mode: pipeline.DropAbort},
	})
	if _, err := abort.TranscribeBytes(context.Background(), toneWAV(65), "wav"); !errors.Is(err, pipeline.ErrBatchFailed) {
		t.Fatalf("abort err = %v", err)
	}
}

type staticTuning tuning.Params

func (s staticTuning) Current() (tuning.Params, bool) { return tuning.Params(s), true }

func TestTranscribeAppliesTuning(t *testing.T) {
	tr := newTestTranscriber(t, wordsEngine(), DefaultOptions(),
		WithTuning(staticTuning{ChunkDurationSec: 10, SearchWindowSec: 2, BatchSize: 4}))
	res, err := tr.TranscribeBytes(context.Background(), toneWAV(45), "wav")
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunkCount != 5 || res.BatchCount != 2 {
		t.Fatalf("chunks=%d batches=%d, want 5 and 2", res.ChunkCount, res.BatchCount)
	}
	if !strings.HasPrefix(res.Transcript, "part 0 part 1") {
		t.Errorf("transcript = %q", res.Transcript)
	}
}

func TestTranscribeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestTranscriber(t, wordsEngine(), DefaultOptions()).TranscribeBytes(ctx, toneWAV(2), "wav")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSpeedFactor(t *testing.T) {
	if got := SpeedFactor(60, 2*time.Second); got != 30 {
		t.Errorf("SpeedFactor = %v, want 30", got)
	}
	if got := SpeedFactor(60, 0); got != 0 {
		t.Errorf("SpeedFactor(zero elapsed) = %v, want 0", got)
	}
}
