package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"team-chat/handler"
	"team-chat/internal/config"
	"team-chat/internal/integrations/azureopenai"
	"team-chat/internal/integrations/paramstore"
	"team-chat/internal/repository"
	"team-chat/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "err", err)
	}
	settings, err := config.LoadSettings()
	if err != nil {
		slog.Error("failed to read settings", "err", err)
		os.Exit(1)
	}
	level, levelErr := parseLevel(settings.LogLevel)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	if levelErr != nil {
		slog.Warn("unknown LOG_LEVEL, using info", "value", settings.LogLevel, "err", levelErr)
	}

	// ---- Team config (validated eagerly, retried per session on failure) ----
	loader := config.NewLoader()
	if _, err := loader.Load(settings.TeamConfigPath); err != nil {
		slog.Warn("team config not loadable at startup", "path", settings.TeamConfigPath, "err", err)
	}

	// ---- AWS SDK config (only when an AWS-backed feature is enabled) ----
	var awsCfg *aws.Config
	if settings.TranscriptTable != "" || settings.ParamPrefix != "" {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		awsCfg = &cfg
	}

	// ---- Clients ----
	llmOpts := []azureopenai.Option{azureopenai.WithTimeout(settings.LLMTimeout)}
	if settings.ParamPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(*awsCfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		llmOpts = append(llmOpts, azureopenai.WithParamStore(ssmClient, settings.ParamPrefix))
	}
	llmClient, err := azureopenai.NewClient(settings.Credentials(), llmOpts...)
	if err != nil {
		slog.Error("failed to create Azure OpenAI client", "err", err)
		os.Exit(1)
	}

	var store usecase.TranscriptStore = repository.NewMemoryStore()
	if settings.TranscriptTable != "" {
		store, err = repository.New(awsdynamodb.NewFromConfig(*awsCfg), settings.TranscriptTable)
		if err != nil {
			slog.Error("failed to create transcript store", "err", err)
			os.Exit(1)
		}
	}

	// ---- Handler ----
	sessions, err := usecase.NewSessionService(loader, settings.TeamConfigPath, llmClient, store, settings.Credentials(),
		usecase.WithMaxMessageLength(settings.MaxMessageLength))
	if err != nil {
		slog.Error("failed to create session service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(sessions)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(h.Handle)
		return
	}
	serve(settings.ListenAddr, h)
}

func serve(addr string, h http.Handler) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// parseLevel accepts the slog level names, optionally with an offset such as
// "debug+2". Empty or unknown values yield info.
func parseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
