package models

import (
	"strconv"
	"time"
)

// UserIDFromChatID derives the stable user identifier from a channel chat id.
func UserIDFromChatID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// Role of a user within the assistant. The owner can manage other users and
// receives the scheduled briefings.
const (
	RoleOwner = "owner"
	RoleUser  = "user"
)

// User represents an authorized chat participant with their preferences.
// Users are soft-deactivated, never deleted, so history stays attributable.
type User struct {
	ID          string    `json:"id"`
	ChatID      int64     `json:"chat_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	DefaultLLM  string    `json:"default_llm"`
	Timezone    string    `json:"timezone"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsOwner reports whether the user may run owner-restricted commands.
func (u *User) IsOwner() bool {
	return u.Role == RoleOwner
}

// ChatTurn is one entry of a user's transcript. Append-only; assistant turns
// carry bookkeeping about which tool and model produced them.
type ChatTurn struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	ToolUsed  string    `json:"tool_used,omitempty"`
	LLMModel  string    `json:"llm_model,omitempty"`
	TokenUsed int       `json:"token_used,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Tool invocation statuses recorded in ToolLog.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ToolLog is the audit trail for tool invocations. Failed entries double as
// the dead-letter record: diagnostic only, never replayed.
type ToolLog struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	ToolName      string    `json:"tool_name"`
	InputSummary  string    `json:"input_summary,omitempty"`
	OutputSummary string    `json:"output_summary,omitempty"`
	Status        string    `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Schedule binds a tool invocation to a user and a cron expression.
type Schedule struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	ToolName  string     `json:"tool_name"`
	CronExpr  string     `json:"cron_expr"`
	Args      string     `json:"args"`
	IsActive  bool       `json:"is_active"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}
