package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/voicetyped/scribe/internal/audio"
	"github.com/voicetyped/scribe/internal/speech/backends/restutil"
	"github.com/voicetyped/scribe/internal/speech/engine"
	"github.com/voicetyped/scribe/internal/speech/registry"
)

const defaultBaseURL = "https://api.openai.com/v1"

func init() {
	registry.Engines.Register("openai", func(config map[string]string) (engine.Engine, error) {
		baseURL := restutil.Lookup(config, "openai_base_url", "base_url")
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		apiKey := restutil.Lookup(config, "openai_api_key", "api_key")
		// Self-hosted OpenAI-compatible servers usually run without a key.
		if apiKey == "" && isOfficial(baseURL) {
			return nil, fmt.Errorf("openai API key required (set openai_api_key in config)")
		}
		model := config["model"]
		if model == "" {
			model = "whisper-1"
		}
		return &OpenAIEngine{
			apiKey:   apiKey,
			baseURL:  strings.TrimRight(baseURL, "/"),
			model:    model,
			language: config["language"],
			parallel: restutil.Parallel(config),
			client:   restutil.NewClient("openai", 2*time.Minute, 5, 30*time.Second),
		}, nil
	})
}

func isOfficial(baseURL string) bool {
	u, err := url.Parse(baseURL)
	return err == nil && u.Hostname() == "api.openai.com"
}

// OpenAIEngine implements engine.Engine using the OpenAI-compatible
// transcription API, uploading each chunk as a WAV file.
type OpenAIEngine struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	parallel int
	client   *restutil.Client
}

func (o *OpenAIEngine) Infer(ctx context.Context, b *engine.Batch) ([]string, error) {
	return restutil.InferEach(ctx, b, o.parallel, o.transcribeChunk)
}

// FeatureExtractor keeps chunks unpadded; the API takes raw audio.
func (o *OpenAIEngine) FeatureExtractor() engine.FeatureExtractor {
	return engine.RawExtractor{}
}

func (o *OpenAIEngine) transcribeChunk(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("openai: create form file: %w", err)
	}
	if _, err := part.Write(audio.EncodeWAV(samples, sampleRate)); err != nil {
		return "", fmt.Errorf("openai: write form file: %w", err)
	}
	_ = writer.WriteField("model", o.model)
	_ = writer.WriteField("response_format", "json")
	if o.language != "" {
		_ = writer.WriteField("language", o.language)
	}
	writer.Close()

	headers := map[string]string{"Content-Type": writer.FormDataContentType()}
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	data, err := o.client.DoRaw(ctx, "POST", o.baseURL+"/audio/transcriptions", headers, body.Bytes())
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("openai decode: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (o *OpenAIEngine) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "whisper-1", DisplayName: "Whisper 1", IsDefault: o.model == "whisper-1"},
		{ID: "gpt-4o-transcribe", DisplayName: "GPT-4o Transcribe", IsDefault: o.model == "gpt-4o-transcribe"},
		{ID: "gpt-4o-mini-transcribe", DisplayName: "GPT-4o Mini Transcribe", IsDefault: o.model == "gpt-4o-mini-transcribe"},
	}
}

func (o *OpenAIEngine) Close() error {
	return nil
}

var (
	_ engine.Engine     = (*OpenAIEngine)(nil)
	_ engine.Extracting = (*OpenAIEngine)(nil)
)
