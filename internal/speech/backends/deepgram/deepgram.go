package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/voicetyped/scribe/internal/audio"
	"github.com/voicetyped/scribe/internal/speech/backends/restutil"
	"github.com/voicetyped/scribe/internal/speech/engine"
	"github.com/voicetyped/scribe/internal/speech/registry"
)

func init() {
	registry.Engines.Register("deepgram", func(config map[string]string) (engine.Engine, error) {
		apiKey := restutil.Lookup(config, "deepgram_api_key", "api_key")
		if apiKey == "" {
			return nil, fmt.Errorf("deepgram API key required (set deepgram_api_key in config)")
		}
		baseURL := restutil.Lookup(config, "deepgram_base_url")
		if baseURL == "" {
			baseURL = "https://api.deepgram.com/v1"
		}
		model := config["model"]
		if model == "" {
			model = "nova-2"
		}
		lang := config["language"]
		if lang == "" {
			lang = "en"
		}
		return &DeepgramEngine{
			apiKey:   apiKey,
			baseURL:  strings.TrimRight(baseURL, "/"),
			model:    model,
			language: lang,
			parallel: restutil.Parallel(config),
			client:   restutil.NewClient("deepgram", 2*time.Minute, 5, 30*time.Second),
		}, nil
	})
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float32 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// DeepgramEngine implements engine.Engine using the Deepgram pre-recorded
// audio REST API.
type DeepgramEngine struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	parallel int
	client   *restutil.Client
}

func (d *DeepgramEngine) Infer(ctx context.Context, b *engine.Batch) ([]string, error) {
	return restutil.InferEach(ctx, b, d.parallel, d.transcribeChunk)
}

func (d *DeepgramEngine) FeatureExtractor() engine.FeatureExtractor {
	return engine.RawExtractor{}
}

func (d *DeepgramEngine) transcribeChunk(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	params := url.Values{}
	params.Set("model", d.model)
	params.Set("language", d.language)
	params.Set("smart_format", "true")
	apiURL := d.baseURL + "/listen?" + params.Encode()

	headers := map[string]string{
		"Authorization": "Token " + d.apiKey,
		"Content-Type":  "audio/wav",
	}

	data, err := d.client.DoRaw(ctx, "POST", apiURL, headers, audio.EncodeWAV(samples, sampleRate))
	if err != nil {
		return "", fmt.Errorf("deepgram API: %w", err)
	}

	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("deepgram decode: %w", err)
	}
	if len(resp.Results.Channels) > 0 && len(resp.Results.Channels[0].Alternatives) > 0 {
		return resp.Results.Channels[0].Alternatives[0].Transcript, nil
	}
	return "", nil
}

func (d *DeepgramEngine) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "nova-2", DisplayName: "Nova 2", IsDefault: true},
		{ID: "nova-2-general", DisplayName: "Nova 2 General"},
		{ID: "nova-2-meeting", DisplayName: "Nova 2 Meeting"},
		{ID: "nova-2-phonecall", DisplayName: "Nova 2 Phone Call"},
		{ID: "enhanced", DisplayName: "Enhanced"},
		{ID: "base", DisplayName: "Base"},
	}
}

func (d *DeepgramEngine) Close() error {
	return nil
}
