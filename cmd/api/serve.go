package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/config"
	"github.com/capitalize-ai/gemini-chat/internal/document"
	"github.com/capitalize-ai/gemini-chat/internal/handler"
	"github.com/capitalize-ai/gemini-chat/internal/llm"
	natsclient "github.com/capitalize-ai/gemini-chat/internal/nats"
	"github.com/capitalize-ai/gemini-chat/internal/service"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/tracing"
)

const serviceName = "gemini-chat"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("configuration validation failed", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting API server",
		zap.String("environment", cfg.Environment),
		zap.String("upload_dir", cfg.UploadDir),
		zap.Bool("api_key_configured", cfg.GeminiAPIKey != ""),
	)

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Error("failed to create upload directory", zap.String("dir", cfg.UploadDir), zap.Error(err))
		return err
	}

	var (
		publisher service.Publisher
		events    handler.ConnectionChecker
	)
	if cfg.NATSEnabled {
		nc, err := connectEvents(ctx, cfg, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			return err
		}
		defer nc.Close()
		publisher = natsclient.NewEventPublisher(nc.JetStream())
		events = nc
	}

	gemini := llm.NewGeminiClient(llmConfig(cfg), log)
	store := service.NewConversationStore(cfg.MaxConversationHistory, log)
	chat := service.NewChatService(store, gemini, publisher, service.ChatLimits{
		MaxMessageLength: cfg.MaxMessageLength,
		MaxAttachments:   cfg.MaxFilesPerUpload,
	}, log)

	extractor := document.NewExtractor(cfg.MaxFileSize, log)
	files := handler.NewFilesHandler(extractor, document.NewStore(cfg.UploadDir), handler.FilesConfig{
		MaxFileSize:       cfg.MaxFileSize,
		MaxFilesPerUpload: cfg.MaxFilesPerUpload,
		AllowedFileTypes:  cfg.AllowedFileTypes,
	}, log, cfg.IsDevelopment())

	router := handler.NewRouter(handler.RouterConfig{
		Chat:              handler.NewChatHandler(chat, log, cfg.IsDevelopment()),
		Files:             files,
		Health:            handler.NewHealthHandler(events),
		Logger:            log,
		CORSOrigin:        cfg.CORSOrigin,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}

func connectEvents(ctx context.Context, cfg *config.Config, log *logger.Logger) (*natsclient.Client, error) {
	nc, err := natsclient.Connect(ctx, natsclient.Config{
		URL:   cfg.NATSURL,
		Token: cfg.NATSToken,
		Name:  serviceName,
	}, log)
	if err != nil {
		return nil, err
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsclient.EnsureStream(ensureCtx, nc.JetStream()); err != nil {
		nc.Close()
		return nil, err
	}
	return nc, nil
}

func llmConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		APIKey:            cfg.GeminiAPIKey,
		APIURL:            cfg.GeminiAPIURL,
		MaxRetries:        cfg.GeminiMaxRetries,
		Timeout:           cfg.GeminiTimeout,
		RetryDelay:        cfg.GeminiRetryDelay,
		ValidationTimeout: cfg.GeminiValidationTimeout,
		Generation: llm.GenerationConfig{
			Temperature:     cfg.DefaultTemperature,
			TopK:            cfg.TopK,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
	}
}
