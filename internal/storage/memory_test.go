package storage

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/antonstanevich/majordomo/internal/models"
)

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 500); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
	long := strings.Repeat("x", 600)
	if got := Truncate(long, 500); len(got) != 500 {
		t.Errorf("len(Truncate(long, 500)) = %d, want 500", len(got))
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	thai := strings.Repeat("ข่าวเทคโนโลยีวันนี้", 20)

	got := Truncate(thai, MaxInputSummaryLen)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is invalid UTF-8, trailing bytes %x", got[len(got)-3:])
	}
	if len(got) > MaxInputSummaryLen {
		t.Errorf("len = %d, want at most %d", len(got), MaxInputSummaryLen)
	}
	if !strings.HasPrefix(thai, got) {
		t.Error("truncated string is not a prefix of the input")
	}
}

func TestLogToolUsageBoundsSummaries(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	entry := &models.ToolLog{
		UserID:        "100",
		ToolName:      "news_summary",
		Status:        models.StatusFailed,
		InputSummary:  strings.Repeat("i", MaxInputSummaryLen+100),
		OutputSummary: strings.Repeat("o", MaxInputSummaryLen+100),
		ErrorMessage:  strings.Repeat("e", MaxErrorMessageLen+100),
	}
	if err := store.LogToolUsage(ctx, entry); err != nil {
		t.Fatalf("LogToolUsage: %v", err)
	}

	logs := store.ToolLogs()
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if len(logs[0].InputSummary) != MaxInputSummaryLen {
		t.Errorf("InputSummary length = %d, want %d", len(logs[0].InputSummary), MaxInputSummaryLen)
	}
	if len(logs[0].OutputSummary) != MaxInputSummaryLen {
		t.Errorf("OutputSummary length = %d, want %d", len(logs[0].OutputSummary), MaxInputSummaryLen)
	}
	if len(logs[0].ErrorMessage) != MaxErrorMessageLen {
		t.Errorf("ErrorMessage length = %d, want %d", len(logs[0].ErrorMessage), MaxErrorMessageLen)
	}
}

func TestUpsertUserReactivates(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	user := &models.User{ID: "100", ChatID: 100, DisplayName: "Tester", Role: models.RoleUser}
	if err := store.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := store.DeactivateUser(ctx, 100); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if found, _ := store.GetUserByChatID(ctx, 100); found != nil {
		t.Fatalf("deactivated user still resolves: %+v", found)
	}

	if err := store.UpsertUser(ctx, &models.User{ID: "100", ChatID: 100, DisplayName: "Tester again", Role: models.RoleUser}); err != nil {
		t.Fatalf("re-UpsertUser: %v", err)
	}
	found, err := store.GetUserByChatID(ctx, 100)
	if err != nil {
		t.Fatalf("GetUserByChatID: %v", err)
	}
	if found == nil || !found.IsActive || found.DisplayName != "Tester again" {
		t.Errorf("re-upserted user = %+v, want active with updated name", found)
	}
}

func TestUpdateUserPreferenceRejectsUnknownKey(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	if err := store.UpsertUser(ctx, &models.User{ID: "100", ChatID: 100, Role: models.RoleUser}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := store.UpdateUserPreference(ctx, "100", "favorite_color", "blue"); err == nil {
		t.Fatal("expected error for an unknown preference key")
	}
	if err := store.UpdateUserPreference(ctx, "100", "timezone", "Europe/Berlin"); err != nil {
		t.Fatalf("UpdateUserPreference(timezone): %v", err)
	}

	user, err := store.GetUser(ctx, "100")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q, want Europe/Berlin", user.Timezone)
	}
}
