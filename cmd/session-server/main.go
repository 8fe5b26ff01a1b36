// cmd/session-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"therapy-connect/internal/api"
	awsclient "therapy-connect/internal/common/aws"
	"therapy-connect/internal/common/config"
	"therapy-connect/internal/common/database"
	apperrors "therapy-connect/internal/common/errors"
	"therapy-connect/internal/common/genai"
	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/common/observability"
	"therapy-connect/internal/common/whisper"
	"therapy-connect/internal/history"
	"therapy-connect/internal/notify"
	"therapy-connect/internal/session"

	gq "therapy-connect/internal/pipeline/generate-questions"
	gs "therapy-connect/internal/pipeline/generate-summary"
	rk "therapy-connect/internal/pipeline/retrieve-knowledge"
	se "therapy-connect/internal/pipeline/score-emotion"
	ta "therapy-connect/internal/pipeline/transcribe-audio"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(apperrors.NewStartupDependencyMissingError("config", err)))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting session server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Audio staging ---
	if _, err := exec.LookPath(cfg.Audio.FFmpegBinary); err != nil {
		zapLog.Fatal("ffmpeg not found", zap.Error(apperrors.NewStartupDependencyMissingError(cfg.Audio.FFmpegBinary, err)))
	}
	if err := os.MkdirAll(cfg.Audio.UploadsDir, 0o755); err != nil {
		zapLog.Fatal("cannot create uploads dir", zap.String("dir", cfg.Audio.UploadsDir), zap.Error(err))
	}

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Pipeline stages ---
	transcriber := &ta.WhisperTranscriber{
		Client: whisper.NewClient(
			whisper.WithBaseURL(cfg.APIs.Transcription.BaseURL),
			whisper.WithKey(cfg.APIs.Transcription.APIKey),
			whisper.WithTimeout(config.GetDuration(cfg.APIs.Transcription.Timeout)),
			whisper.WithMaxRetries(cfg.APIs.Transcription.MaxRetries),
		),
		Model:    cfg.APIs.Transcription.Model,
		Language: cfg.APIs.Transcription.Language,
	}
	taConfig := &ta.Config{
		UploadsDir:       cfg.Audio.UploadsDir,
		Transcode:        cfg.Audio.Transcode,
		FFmpegBinary:     cfg.Audio.FFmpegBinary,
		TranscodeTimeout: config.GetDuration(cfg.Audio.TranscodeTimeout),
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         cfg.Audio.Channels,
	}
	transcribeHandler := ta.NewHandler(taConfig, transcriber, ta.NewFFmpegTranscoder(taConfig), log)

	scoreHandler := se.NewHandler(&se.Config{
		BaseURL:    cfg.APIs.Classifier.BaseURL,
		APIKey:     cfg.APIs.Classifier.APIKey,
		Model:      cfg.APIs.Classifier.Model,
		Timeout:    config.GetDuration(cfg.APIs.Classifier.Timeout),
		MaxRetries: cfg.APIs.Classifier.MaxRetries,
	}, log)

	rkConfig := &rk.Config{
		Index:               cfg.Knowledge.Index,
		VectorField:         cfg.Knowledge.VectorField,
		TextField:           cfg.Knowledge.TextField,
		TopK:                cfg.Knowledge.TopK,
		NumCandidates:       cfg.Knowledge.NumCandidates,
		EmbeddingURL:        cfg.APIs.Embedding.BaseURL,
		EmbeddingAPIKey:     cfg.APIs.Embedding.APIKey,
		EmbeddingTimeout:    config.GetDuration(cfg.APIs.Embedding.Timeout),
		EmbeddingMaxRetries: cfg.APIs.Embedding.MaxRetries,
	}
	retrieveHandler := rk.NewHandler(rkConfig, esClient.Client, rk.NewTEIEmbedder(rkConfig), log)
	if err := retrieveHandler.CheckIndex(ctx); err != nil {
		zapLog.Fatal("knowledge index unavailable", zap.String("index", rkConfig.Index), zap.Error(err))
	}

	generator := genai.NewClient(&genai.Config{
		BaseURL:         cfg.APIs.GenAI.BaseURL,
		APIKey:          cfg.APIs.GenAI.APIKey,
		Model:           cfg.APIs.GenAI.Model,
		Temperature:     cfg.APIs.GenAI.Temperature,
		MaxOutputTokens: cfg.APIs.GenAI.MaxOutputTokens,
		Timeout:         config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxRetries:      cfg.APIs.GenAI.MaxRetries,
	})

	deps := session.Dependencies{
		Transcriber: transcribeHandler,
		Scorer:      scoreHandler,
		Retriever:   retrieveHandler,
		Questions:   gq.NewHandler(generator, log),
		Summaries:   gs.NewHandler(generator, log),
		Logger:      log,
	}

	checks := []api.ReadinessCheck{
		{Name: "elasticsearch", Check: func(ctx context.Context) error {
			ok, err := esClient.IndexExists(ctx, rkConfig.Index)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.NewIndexNotFoundError(rkConfig.Index)
			}
			return nil
		}},
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	if cfg.Sessions.Enabled {
		err = retryWithBackoff(func() error {
			redis = database.NewRedis(cfg.Database.Redis)
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")

		deps.Store = session.NewRedisStore(redis.Client, config.GetDuration(cfg.Sessions.TTL))
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: redis.Ping})
	}

	// --- Init AWS clients ---
	if cfg.Notifications.Events.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		deps.Events = notify.NewEventPublisher(snsClient, cfg.Notifications.Events.TopicARN)
		zapLog.Info("Session events enabled", zap.String("topicArn", cfg.Notifications.Events.TopicARN))
	}

	routerOpts := api.Options{
		Sessions:       session.NewOrchestrator(deps),
		Observability:  obs,
		Logger:         log,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	if cfg.History.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		store := history.NewStore(pg.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("history schema failed", zap.Error(err))
		}

		loc, err := time.LoadLocation(cfg.History.Timezone)
		if err != nil {
			zapLog.Fatal("invalid history timezone", zap.Error(err))
		}

		routerOpts.History = store
		routerOpts.Location = loc
		checks = append(checks, api.ReadinessCheck{Name: "postgres", Check: pg.Ping})

		if cfg.Notifications.Email.Enabled {
			sesClient, err := awsclient.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("ses client init failed", zap.Error(err))
			}
			routerOpts.Sharer = notify.NewMailer(sesClient, cfg.Notifications.Email.FromEmail, loc, log)
			zapLog.Info("Summary sharing enabled")
		}
	}
	routerOpts.Checks = checks

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.NewRouter(routerOpts),
		ReadHeaderTimeout: config.GetDuration(cfg.Server.ReadHeaderTimeout),
	}

	go func() {
		zapLog.Info("Session server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("Session server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down meter provider", zap.Error(err))
	}

	zapLog.Info("Session server stopped gracefully")
}
