package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	scribeconfig "github.com/voicetyped/scribe/config"
	"github.com/voicetyped/scribe/api/transcription/v1/transcriptionv1connect"
	"github.com/voicetyped/scribe/internal/audio/decode"
	"github.com/voicetyped/scribe/internal/connectutil"
	"github.com/voicetyped/scribe/internal/metrics"
	"github.com/voicetyped/scribe/internal/speech/registry"
	"github.com/voicetyped/scribe/internal/transcription"
	"github.com/voicetyped/scribe/internal/transcription/handler"
	"github.com/voicetyped/scribe/internal/transcription/pipeline"
	"github.com/voicetyped/scribe/internal/transcription/store"
	"github.com/voicetyped/scribe/internal/transcription/tuning"
	"github.com/voicetyped/scribe/pkg/events"
	"github.com/voicetyped/scribe/pkg/urlvalidation"
	"github.com/voicetyped/scribe/pkg/webhook"

	// Register engines via init().
	_ "github.com/voicetyped/scribe/internal/speech/backends/deepgram"
	_ "github.com/voicetyped/scribe/internal/speech/backends/google"
	_ "github.com/voicetyped/scribe/internal/speech/backends/loopback"
	_ "github.com/voicetyped/scribe/internal/speech/backends/openai"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[scribeconfig.ScribeConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	serviceOpts := []frame.Option{
		frame.WithConfig(&cfg),
		frame.WithName("scribe"),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	}
	if cfg.PersistResults {
		serviceOpts = append(serviceOpts, frame.WithDatastore())
	}
	if cfg.AuthEnabled {
		serviceOpts = append(serviceOpts, frame.WithRegisterServerOauth2Client())
	}
	ctx, srv := frame.NewService(serviceOpts...)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	pub := events.NewPublisher(srv.QueueManager(), "scribe", eventRef)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Engine ---
	engineConfig := cfg.EngineConfig()
	eng, err := registry.Engines.Create(cfg.EngineBackend, engineConfig)
	if err != nil {
		log.Fatalf("creating engine: %v", err)
	}
	defer eng.Close()

	concurrency := int64(max(cfg.EngineConcurrency, 1))
	guard := semaphore.NewWeighted(concurrency)

	dec := decode.Auto{
		WAV: decode.NewWAV(),
		Fallback: decode.NewFFmpeg(
			decode.WithFFmpegBinary(cfg.FFmpegBinary),
			decode.WithCommandTimeout(time.Duration(cfg.DecodeTimeoutSec)*time.Second),
		),
	}

	mode, err := pipeline.ParseDropPolicy(cfg.DropPolicy)
	if err != nil {
		log.Fatalf("parsing drop policy: %v", err)
	}
	opts := transcription.Options{
		BatchSize:     cfg.BatchSize,
		ChunkDuration: cfg.ChunkDurationSec,
		SearchWindow:  cfg.SearchWindowSec,
		QueueDepth:    cfg.QueueDepth,
		Policy:        pipeline.Policy{Mode: mode, Attempts: cfg.RetryAttempts},
	}
	trOpts := []transcription.Option{
		transcription.WithGuard(guard),
		transcription.WithMetrics(m),
		transcription.WithBackendName(cfg.EngineBackend),
		transcription.WithTempDir(cfg.TempDir),
	}

	// --- Live tuning ---
	if cfg.TuningFile != "" {
		loader := tuning.NewLoader(cfg.TuningFile)
		if _, err := loader.Load(); err != nil {
			util.Log(ctx).WithError(err).Warn("tuning: initial load failed, using configured values")
		}
		loader.OnReload(func(p tuning.Params) {
			if err := pub.Emit(ctx, events.TuningReloaded, "", &events.TuningReloadedData{
				Path:             cfg.TuningFile,
				BatchSize:        p.BatchSize,
				ChunkDurationSec: p.ChunkDurationSec,
				DropPolicy:       p.DropPolicy,
			}); err != nil {
				util.Log(ctx).WithError(err).Warn("tuning: emit reload event")
			}
		})
		if err := pool.Submit(ctx, func() {
			if err := loader.WatchAndReload(ctx.Done()); err != nil {
				util.Log(ctx).WithError(err).Error("tuning: watcher stopped")
			}
		}); err != nil {
			log.Fatalf("starting tuning watcher: %v", err)
		}
		trOpts = append(trOpts, transcription.WithTuning(loader))
	}

	svc := transcription.NewTranscriber(dec, eng, opts, trOpts...)

	// --- Handler ---
	hOpts := []handler.Option{
		handler.WithEmitter(pub),
		handler.WithMetrics(m),
		handler.WithTempDir(cfg.TempDir),
		handler.WithMaxPayloadBytes(cfg.MaxPayloadBytes),
		handler.WithServiceConfig(engineConfig),
	}
	if cfg.PersistResults {
		repo := store.NewRepository(srv.DatastoreManager().GetPool(ctx, "__default__pool_name__"))
		if err := repo.Migrate(ctx); err != nil {
			log.Fatalf("migrating transcriptions: %v", err)
		}
		hOpts = append(hOpts, handler.WithRecorder(repo))
	}
	hdlr := handler.NewTranscriptionHandler(svc, pool, hOpts...)

	connectOpts := connectutil.DefaultOptions(cfg.MaxPayloadBytes)
	if cfg.AuthEnabled {
		authenticator := srv.SecurityManager().GetAuthenticator(ctx)
		connectOpts, err = connectutil.AuthenticatedOptions(ctx, authenticator, cfg.MaxPayloadBytes)
		if err != nil {
			log.Fatalf("setting up auth interceptors: %v", err)
		}
	}

	mux := http.NewServeMux()
	path, h := transcriptionv1connect.NewTranscriptionServiceHandler(hdlr, connectOpts...)
	mux.Handle(path, h)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	initOpts := []frame.Option{frame.WithHTTPHandler(connectutil.H2CHandler(mux))}

	// --- Completion callbacks ---
	if urls := cfg.WebhookEndpoints(); len(urls) > 0 {
		var validateOpts []urlvalidation.Option
		if cfg.WebhookAllowPrivate {
			validateOpts = append(validateOpts, urlvalidation.AllowPrivateIPs())
		}
		endpoints := make([]webhook.Endpoint, 0, len(urls))
		for _, u := range urls {
			if err := urlvalidation.ValidateCallbackURL(ctx, u, validateOpts...); err != nil {
				log.Fatalf("invalid webhook URL %q: %v", u, err)
			}
			endpoints = append(endpoints, webhook.Endpoint{URL: u, Secret: cfg.WebhookSecret})
		}
		sub := &webhook.Subscriber{
			Endpoints: endpoints,
			Deliverer: webhook.NewDeliverer(webhook.Config{
				MaxAttempts: uint(max(cfg.WebhookMaxAttempts, 1)),
				Timeout:     time.Duration(cfg.WebhookTimeoutSec) * time.Second,
			}, validateOpts...),
			Types: []events.EventType{events.TranscriptionCompleted, events.TranscriptionFailed},
			Pool:  pool,
		}
		initOpts = append(initOpts, frame.WithRegisterSubscriber(eventRef+".webhooks", eventURL, sub))
	}

	srv.Init(ctx, initOpts...)

	util.Log(ctx).WithField("backend", cfg.EngineBackend).WithField("engine_concurrency", concurrency).Info("scribe: starting")
	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
