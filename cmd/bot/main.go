package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/bot"
	"github.com/antonstanevich/majordomo/internal/dispatcher"
	"github.com/antonstanevich/majordomo/internal/llm"
	"github.com/antonstanevich/majordomo/internal/memory"
	"github.com/antonstanevich/majordomo/internal/models"
	"github.com/antonstanevich/majordomo/internal/scheduler"
	"github.com/antonstanevich/majordomo/internal/storage"
	"github.com/antonstanevich/majordomo/internal/tool"
	"github.com/antonstanevich/majordomo/internal/tools"
	"github.com/antonstanevich/majordomo/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ensure the owner user exists (idempotent)
	owner := &models.User{
		ID:          models.UserIDFromChatID(cfg.Owner.ChatID),
		ChatID:      cfg.Owner.ChatID,
		DisplayName: cfg.Owner.DisplayName,
		Role:        models.RoleOwner,
		DefaultLLM:  cfg.LLM.DefaultProvider,
		Timezone:    cfg.Schedule.Timezone,
	}
	if err := store.UpsertUser(ctx, owner); err != nil {
		logger.Fatal("Failed to initialize owner user", zap.Error(err))
	}

	// Register LLM providers; a missing API key leaves the provider
	// unconfigured, not unregistered.
	providers := llm.NewRegistry(logger)
	providers.RegisterAll(
		llm.NewClaudeProvider(cfg.LLM.Anthropic.APIKey,
			cfg.LLM.Anthropic.CheapModel, cfg.LLM.Anthropic.MidModel,
			cfg.LLM.MaxTokens, logger),
		llm.NewOpenAIProvider(cfg.LLM.OpenAI.APIKey,
			cfg.LLM.OpenAI.CheapModel, cfg.LLM.OpenAI.MidModel,
			cfg.LLM.MaxTokens, logger),
	)
	router := llm.NewRouter(providers, logger)

	// Register tools
	registry := tool.NewRegistry(logger)
	registry.RegisterAll(
		tools.NewNewsTool(logger),
		tools.NewPlacesTool(cfg.Maps.APIKey, logger),
		tools.NewTrafficTool(cfg.Maps.APIKey, logger),
	)

	mem := memory.New(store, cfg.Memory.ContextWindow)

	disp := dispatcher.New(registry, router, mem, store, dispatcher.Options{
		DefaultProvider: cfg.LLM.DefaultProvider,
		DefaultTimezone: cfg.Schedule.Timezone,
	}, logger)

	// Initialize transport
	b, err := bot.New(cfg.Telegram.Token, store, disp, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start scheduler
	sched, err := scheduler.New(registry, store, b, scheduler.Config{
		Timezone:          cfg.Schedule.Timezone,
		BriefingCron:      cfg.Schedule.BriefingCron,
		CleanupCron:       cfg.Schedule.CleanupCron,
		ChatRetentionDays: cfg.Memory.RetentionDays,
		LogRetentionDays:  cfg.Memory.LogRetentionDays,
		OwnerUserID:       owner.ID,
		OwnerChatID:       owner.ChatID,
		BriefingTool:      "news_summary",
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("Shutting down")
		cancel()
	}()

	// Start the polling loop; blocks until shutdown
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
