package config

import (
	"strconv"
	"strings"

	"github.com/pitabwire/frame/config"
)

// ScribeConfig holds configuration for the transcription service.
type ScribeConfig struct {
	config.ConfigurationDefault

	// Engine
	EngineBackend     string `envDefault:"loopback" env:"ENGINE_BACKEND"`
	EngineModel       string `envDefault:""         env:"ENGINE_MODEL"`
	EngineLanguage    string `envDefault:""         env:"ENGINE_LANGUAGE"`
	EngineConcurrency int    `envDefault:"1"        env:"ENGINE_CONCURRENCY"`
	EngineParallel    int    `envDefault:"4"        env:"ENGINE_PARALLEL"`

	// Pipeline. Chunks are cut near ChunkDurationSec but the cut search can
	// land up to SearchWindowSec/2 past it. The default extractor holds
	// 480000 samples (30 s at 16 kHz); longer chunks lose their tail and are
	// counted in scribe_truncated_samples_total.
	BatchSize        int     `envDefault:"32"       env:"BATCH_SIZE"`
	ChunkDurationSec float64 `envDefault:"30"       env:"CHUNK_DURATION_SEC"`
	SearchWindowSec  float64 `envDefault:"5"        env:"SEARCH_WINDOW_SEC"`
	QueueDepth       int     `envDefault:"2"        env:"QUEUE_DEPTH"`
	DropPolicy       string  `envDefault:"continue" env:"DROP_POLICY"`
	RetryAttempts    int     `envDefault:"2"        env:"RETRY_ATTEMPTS"`
	TuningFile       string  `envDefault:""         env:"TUNING_FILE"`

	// Requests
	MaxPayloadBytes  int64  `envDefault:"209715200" env:"MAX_PAYLOAD_BYTES"`
	TempDir          string `envDefault:""          env:"TEMP_DIR"`
	FFmpegBinary     string `envDefault:"ffmpeg"    env:"FFMPEG_BINARY"`
	DecodeTimeoutSec int    `envDefault:"300"       env:"DECODE_TIMEOUT_SEC"`
	PersistResults   bool   `envDefault:"false"     env:"PERSIST_RESULTS"`
	AuthEnabled      bool   `envDefault:"false"     env:"AUTH_ENABLED"`

	// Completion callbacks
	WebhookURLs         string `envDefault:""      env:"WEBHOOK_URLS"`
	WebhookSecret       string `envDefault:""      env:"WEBHOOK_SECRET"`
	WebhookMaxAttempts  int    `envDefault:"5"     env:"WEBHOOK_MAX_ATTEMPTS"`
	WebhookTimeoutSec   int    `envDefault:"10"    env:"WEBHOOK_TIMEOUT_SEC"`
	WebhookAllowPrivate bool   `envDefault:"false" env:"WEBHOOK_ALLOW_PRIVATE"`

	// Remote backends
	OpenAIAPIKey    string `envDefault:""                          env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envDefault:"https://api.openai.com/v1" env:"OPENAI_BASE_URL"`
	DeepgramAPIKey  string `envDefault:""                          env:"DEEPGRAM_API_KEY"`
	GoogleAPIKey    string `envDefault:""                          env:"GOOGLE_API_KEY"`
	LoopbackLatency int    `envDefault:"0"                         env:"LOOPBACK_LATENCY_MS"`
}

// EngineConfig is the flat key/value map handed to engine factories.
func (c *ScribeConfig) EngineConfig() map[string]string {
	m := map[string]string{
		"openai_api_key":   c.OpenAIAPIKey,
		"openai_base_url":  c.OpenAIBaseURL,
		"deepgram_api_key": c.DeepgramAPIKey,
		"google_api_key":   c.GoogleAPIKey,
		"parallel":         strconv.Itoa(c.EngineParallel),
		"latency_ms":       strconv.Itoa(c.LoopbackLatency),
	}
	if c.EngineModel != "" {
		m["model"] = c.EngineModel
	}
	if c.EngineLanguage != "" {
		m["language"] = c.EngineLanguage
	}
	return m
}

// WebhookEndpoints splits WEBHOOK_URLS on commas, dropping blanks.
func (c *ScribeConfig) WebhookEndpoints() []string {
	var out []string
	for _, u := range strings.Split(c.WebhookURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
