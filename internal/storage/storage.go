package storage

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/antonstanevich/majordomo/internal/models"
)

// Truncation limits applied to tool log summaries before they are persisted.
const (
	MaxInputSummaryLen = 500
	MaxErrorMessageLen = 1000
)

type Storage interface {
	// Users
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context) ([]*models.User, error)
	DeactivateUser(ctx context.Context, chatID int64) error
	UpdateUserPreference(ctx context.Context, userID, key, value string) error

	// Chat history
	SaveChatTurn(ctx context.Context, turn *models.ChatTurn) error
	GetChatContext(ctx context.Context, userID string, limit int) ([]*models.ChatTurn, error)
	DeleteChatTurnsBefore(ctx context.Context, cutoff time.Time) error

	// Tool logs
	LogToolUsage(ctx context.Context, entry *models.ToolLog) error
	DeleteToolLogsBefore(ctx context.Context, cutoff time.Time) error

	// Schedules
	GetActiveSchedules(ctx context.Context) ([]*models.Schedule, error)
	UpdateScheduleLastRun(ctx context.Context, scheduleID int64, at time.Time) error

	Close() error
}

// Truncate bounds a summary string before persisting it. The cut lands on a
// rune boundary so a truncated summary stays valid UTF-8; Postgres rejects
// invalid byte sequences outright.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
