package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/voicetyped/scribe/internal/audio"
	"github.com/voicetyped/scribe/internal/speech/backends/restutil"
	"github.com/voicetyped/scribe/internal/speech/engine"
	"github.com/voicetyped/scribe/internal/speech/registry"
)

func init() {
	registry.Engines.Register("google", func(config map[string]string) (engine.Engine, error) {
		apiKey := restutil.Lookup(config, "google_api_key", "api_key")
		if apiKey == "" {
			return nil, fmt.Errorf("google API key required (set google_api_key in config)")
		}
		baseURL := restutil.Lookup(config, "google_base_url")
		if baseURL == "" {
			baseURL = "https://speech.googleapis.com/v1"
		}
		model := config["model"]
		if model == "" {
			model = "latest_long"
		}
		lang := config["language"]
		if lang == "" {
			lang = "en-US"
		}
		return &GoogleEngine{
			apiKey:   apiKey,
			baseURL:  strings.TrimRight(baseURL, "/"),
			model:    model,
			language: lang,
			parallel: restutil.Parallel(config),
			client:   restutil.NewClient("google", 2*time.Minute, 5, 30*time.Second),
		}, nil
	})
}

type recognizeRequest struct {
	Config recognizeConfig `json:"config"`
	Audio  recognizeAudio  `json:"audio"`
}

type recognizeConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	LanguageCode               string `json:"languageCode"`
	Model                      string `json:"model"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float32 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// GoogleEngine implements engine.Engine using the synchronous Cloud
// Speech-to-Text recognize call. Chunks must stay under one minute.
type GoogleEngine struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	parallel int
	client   *restutil.Client
}

func (g *GoogleEngine) Infer(ctx context.Context, b *engine.Batch) ([]string, error) {
	return restutil.InferEach(ctx, b, g.parallel, g.transcribeChunk)
}

func (g *GoogleEngine) FeatureExtractor() engine.FeatureExtractor {
	return engine.RawExtractor{}
}

func (g *GoogleEngine) transcribeChunk(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	req := recognizeRequest{
		Config: recognizeConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            sampleRate,
			LanguageCode:               g.language,
			Model:                      g.model,
			EnableAutomaticPunctuation: true,
		},
		Audio: recognizeAudio{
			Content: base64.StdEncoding.EncodeToString(audio.EncodePCM16(samples)),
		},
	}

	var resp recognizeResponse
	apiURL := g.baseURL + "/speech:recognize?key=" + g.apiKey
	if err := g.client.DoJSON(ctx, "POST", apiURL, nil, req, &resp); err != nil {
		return "", fmt.Errorf("google: %w", err)
	}

	// Long chunks come back as several consecutive results.
	parts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(r.Alternatives[0].Transcript))
		}
	}
	return strings.Join(parts, " "), nil
}

func (g *GoogleEngine) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "latest_long", DisplayName: "Latest Long", IsDefault: true},
		{ID: "latest_short", DisplayName: "Latest Short"},
		{ID: "chirp_2", DisplayName: "Chirp 2"},
		{ID: "chirp", DisplayName: "Chirp"},
	}
}

func (g *GoogleEngine) Close() error {
	return nil
}
