// Package scheduler runs time-triggered tool invocations: the built-in
// retention sweep, the owner's morning briefing, and the per-user schedule
// entries loaded from storage. Results are delivered proactively through the
// same delivery boundary the transport uses.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/models"
	"github.com/antonstanevich/majordomo/internal/storage"
	"github.com/antonstanevich/majordomo/internal/tool"
)

// Delivery is the outbound boundary. Implementations chunk and translate as
// needed; the scheduler treats it as "deliver this text, best-effort."
type Delivery interface {
	Deliver(chatID int64, text string)
}

type Config struct {
	Timezone          string
	BriefingCron      string
	CleanupCron       string
	ChatRetentionDays int
	LogRetentionDays  int
	OwnerUserID       string
	OwnerChatID       int64
	// BriefingTool is the tool the owner briefing job invokes.
	BriefingTool string
}

type Scheduler struct {
	cron     *cron.Cron
	tools    *tool.Registry
	storage  storage.Storage
	delivery Delivery
	config   Config
	logger   *zap.Logger
}

func New(tools *tool.Registry, store storage.Storage, delivery Delivery, config Config, logger *zap.Logger) (*Scheduler, error) {
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(location)),
		tools:    tools,
		storage:  store,
		delivery: delivery,
		config:   config,
		logger:   logger,
	}, nil
}

// Start registers the built-in jobs plus the active schedule entries and
// begins firing. A malformed entry is skipped with a log, never a startup
// failure.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.config.CleanupCron, s.runCleanup); err != nil {
		return fmt.Errorf("invalid cleanup cron %q: %w", s.config.CleanupCron, err)
	}

	if _, err := s.cron.AddFunc(s.config.BriefingCron, func() {
		s.runTool(s.config.OwnerUserID, s.config.OwnerChatID, s.config.BriefingTool, "")
	}); err != nil {
		return fmt.Errorf("invalid briefing cron %q: %w", s.config.BriefingCron, err)
	}

	schedules, err := s.storage.GetActiveSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	loaded := 0
	for _, entry := range schedules {
		if s.addSchedule(ctx, entry) {
			loaded++
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.Int("custom_jobs", loaded),
		zap.Int("total_jobs", len(s.cron.Entries())))
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// JobCount returns the number of scheduled jobs, built-ins included.
func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}

// addSchedule wires one stored entry into the cron. Returns false when the
// entry was skipped.
func (s *Scheduler) addSchedule(ctx context.Context, entry *models.Schedule) bool {
	user, err := s.storage.GetUser(ctx, entry.UserID)
	if err != nil {
		s.logger.Error("Failed to resolve schedule user",
			zap.Int64("schedule_id", entry.ID), zap.Error(err))
		return false
	}
	if user == nil || !user.IsActive {
		s.logger.Warn("Skipping schedule for missing or deactivated user",
			zap.Int64("schedule_id", entry.ID),
			zap.String("user_id", entry.UserID))
		return false
	}

	scheduleID := entry.ID
	userID := entry.UserID
	chatID := user.ChatID
	toolName := entry.ToolName
	args := entry.Args

	_, err = s.cron.AddFunc(entry.CronExpr, func() {
		if s.runTool(userID, chatID, toolName, args) {
			if err := s.storage.UpdateScheduleLastRun(context.Background(), scheduleID, time.Now()); err != nil {
				s.logger.Error("Failed to update schedule last run",
					zap.Int64("schedule_id", scheduleID), zap.Error(err))
			}
		}
	})
	if err != nil {
		s.logger.Warn("Skipping schedule with invalid cron expression",
			zap.Int64("schedule_id", entry.ID),
			zap.String("cron_expr", entry.CronExpr),
			zap.Error(err))
		return false
	}

	return true
}

// runTool executes a tool for a bound user and delivers the raw result.
// Failures are logged to the tool log and reported to the bound user instead
// of being raised. Returns true on success.
func (s *Scheduler) runTool(userID string, chatID int64, toolName, args string) bool {
	ctx := context.Background()

	t := s.tools.ByName(toolName)
	if t == nil {
		s.logger.Warn("Scheduled tool not found", zap.String("tool", toolName))
		return false
	}

	output, err := t.Execute(ctx, userID, args)

	entry := &models.ToolLog{
		UserID:       userID,
		ToolName:     toolName,
		InputSummary: args,
		Status:       models.StatusSuccess,
	}
	if err != nil {
		entry.Status = models.StatusFailed
		entry.ErrorMessage = err.Error()
	} else {
		entry.OutputSummary = output
	}
	if logErr := s.storage.LogToolUsage(ctx, entry); logErr != nil {
		s.logger.Error("Failed to write tool log", zap.Error(logErr))
	}

	if err != nil {
		s.logger.Error("Scheduled tool failed",
			zap.String("tool", toolName),
			zap.String("user_id", userID),
			zap.Error(err))
		s.delivery.Deliver(chatID, fmt.Sprintf("⚠️ [Scheduled] %s failed: %v", toolName, err))
		return false
	}

	s.delivery.Deliver(chatID, output)
	return true
}

// runCleanup is the daily retention sweep over chat history and tool logs.
func (s *Scheduler) runCleanup() {
	ctx := context.Background()
	now := time.Now()

	chatCutoff := now.AddDate(0, 0, -s.config.ChatRetentionDays)
	if err := s.storage.DeleteChatTurnsBefore(ctx, chatCutoff); err != nil {
		s.logger.Error("Chat retention sweep failed", zap.Error(err))
	}

	logCutoff := now.AddDate(0, 0, -s.config.LogRetentionDays)
	if err := s.storage.DeleteToolLogsBefore(ctx, logCutoff); err != nil {
		s.logger.Error("Tool log retention sweep failed", zap.Error(err))
	}

	s.logger.Info("Retention sweep completed",
		zap.Time("chat_cutoff", chatCutoff),
		zap.Time("log_cutoff", logCutoff))
}
