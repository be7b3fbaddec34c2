package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/models"
)

const permissionDenied = "⛔ This command is restricted to the owner."

// handleModel shows the configured providers or switches the user's default.
// Handled entirely locally: no LLM tokens, no tool execution.
func (d *Dispatcher) handleModel(ctx context.Context, user *models.User, args string) string {
	available := d.router.ConfiguredNames()
	args = strings.ToLower(strings.TrimSpace(args))

	if args == "" {
		if len(available) == 0 {
			return "❌ No LLM provider is configured."
		}
		var b strings.Builder
		b.WriteString("🧠 Available LLM providers:\n")
		for _, name := range available {
			marker := "  "
			if name == user.DefaultLLM {
				marker = "✅ "
			}
			fmt.Fprintf(&b, "%s%s\n", marker, name)
		}
		fmt.Fprintf(&b, "\nUse: /model [name], e.g. /model %s", available[0])
		return b.String()
	}

	configured := false
	for _, name := range available {
		if name == args {
			configured = true
			break
		}
	}
	if !configured {
		return fmt.Sprintf("❌ %s is not available — API key not configured.\n✅ Configured options: %s",
			args, strings.Join(available, ", "))
	}

	if err := d.storage.UpdateUserPreference(ctx, user.ID, "default_llm", args); err != nil {
		d.logger.Error("Failed to update default provider",
			zap.String("user_id", user.ID), zap.Error(err))
		return "⚠️ Failed to save the preference. Please try again."
	}
	return fmt.Sprintf("✅ Default LLM switched to %s.", args)
}

// handleUserCommand implements the owner-only user management commands.
func (d *Dispatcher) handleUserCommand(ctx context.Context, user *models.User, command, args string) string {
	if !user.IsOwner() {
		return permissionDenied
	}

	switch command {
	case "/users":
		return d.listUsers(ctx)
	case "/adduser":
		return d.addUser(ctx, args)
	case "/rmuser":
		return d.removeUser(ctx, user, args)
	}
	return permissionDenied
}

func (d *Dispatcher) listUsers(ctx context.Context) string {
	users, err := d.storage.ListUsers(ctx)
	if err != nil {
		d.logger.Error("Failed to list users", zap.Error(err))
		return "⚠️ Failed to list users."
	}
	if len(users) == 0 {
		return "No users yet."
	}

	var b strings.Builder
	b.WriteString("👥 Users:\n")
	for _, u := range users {
		state := "active"
		if !u.IsActive {
			state = "inactive"
		}
		fmt.Fprintf(&b, "  %s (chat %d, %s, %s)\n", u.DisplayName, u.ChatID, u.Role, state)
	}
	return b.String()
}

func (d *Dispatcher) addUser(ctx context.Context, args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "Usage: /adduser <chat_id> [display name]"
	}

	chatID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Sprintf("❌ Invalid chat id: %s", fields[0])
	}

	displayName := strings.Join(fields[1:], " ")
	if displayName == "" {
		displayName = fields[0]
	}

	newUser := &models.User{
		ID:          fields[0],
		ChatID:      chatID,
		DisplayName: displayName,
		Role:        models.RoleUser,
		DefaultLLM:  d.defaultProvider,
		Timezone:    d.defaultTimezone,
	}
	if err := d.storage.UpsertUser(ctx, newUser); err != nil {
		d.logger.Error("Failed to add user", zap.Int64("chat_id", chatID), zap.Error(err))
		return "⚠️ Failed to add the user."
	}

	d.logger.Info("User authorized", zap.Int64("chat_id", chatID), zap.String("name", displayName))
	return fmt.Sprintf("✅ Added %s (chat %d).", displayName, chatID)
}

func (d *Dispatcher) removeUser(ctx context.Context, caller *models.User, args string) string {
	args = strings.TrimSpace(args)
	if args == "" {
		return "Usage: /rmuser <chat_id>"
	}

	chatID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		return fmt.Sprintf("❌ Invalid chat id: %s", args)
	}
	if chatID == caller.ChatID {
		return "❌ You cannot deactivate yourself."
	}

	if err := d.storage.DeactivateUser(ctx, chatID); err != nil {
		d.logger.Error("Failed to deactivate user", zap.Int64("chat_id", chatID), zap.Error(err))
		return "⚠️ Failed to deactivate the user."
	}

	d.logger.Info("User deactivated", zap.Int64("chat_id", chatID))
	return fmt.Sprintf("✅ Deactivated chat %d. History is retained.", chatID)
}
