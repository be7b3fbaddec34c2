// Package bot is the Telegram transport: the long-poll loop, the
// authorization gate, and outbound delivery with chunking. It treats the
// dispatcher as the single place messages go and never interprets replies.
package bot

import (
	"context"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/dispatcher"
	"github.com/antonstanevich/majordomo/internal/storage"
)

// maxMessageLength is Telegram's hard limit per message, in characters.
const maxMessageLength = 4096

// typingInterval is how often the typing indicator is refreshed while a
// dispatch turn is running. Cosmetic only.
const typingInterval = 4 * time.Second

type Bot struct {
	api        *tgbotapi.BotAPI
	storage    storage.Storage
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
}

func New(token string, store storage.Storage, disp *dispatcher.Dispatcher, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &Bot{
		api:        api,
		storage:    store,
		dispatcher: disp,
		logger:     logger,
	}, nil
}

// Start runs the long-poll loop until the context is cancelled. Each update
// is processed in its own goroutine; per-user ordering within one poll batch
// follows Telegram's update order.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram polling started", zap.String("bot", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	user, err := b.storage.GetUserByChatID(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to look up user", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	if user == nil {
		// Not authorized; stay silent apart from the log.
		b.logger.Warn("Ignoring message from unauthorized chat", zap.Int64("chat_id", chatID))
		return
	}

	stopTyping := b.keepTyping(ctx, chatID)
	defer stopTyping()

	result := b.dispatcher.Process(ctx, user, message.Text)
	stopTyping()

	b.Deliver(chatID, result.Reply)
}

// keepTyping refreshes the chat's typing indicator until the returned stop
// function is called. handleMessage defers the stop so the refresher never
// outlives the turn, panics included.
func (b *Bot) keepTyping(ctx context.Context, chatID int64) func() {
	return refreshUntilStopped(ctx, typingInterval, func() { b.sendTyping(chatID) })
}

// refreshUntilStopped runs refresh once immediately and again on every tick
// until the returned stop function is called or the context ends. Stop is
// safe to call more than once.
func refreshUntilStopped(ctx context.Context, interval time.Duration, refresh func()) func() {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		refresh()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	var once bool
	return func() {
		if !once {
			once = true
			close(done)
		}
	}
}

func (b *Bot) sendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.api.Request(action); err != nil {
		b.logger.Debug("Failed to send typing action", zap.Error(err))
	}
}

// Deliver sends text to a chat, splitting oversized messages. Best-effort:
// failures are logged, never raised. Implements scheduler.Delivery.
func (b *Bot) Deliver(chatID int64, text string) {
	if text == "" {
		return
	}

	for _, chunk := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if _, err := b.api.Send(msg); err != nil {
			b.logger.Error("Failed to send message",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
			return
		}
	}
}

// splitMessage breaks text into chunks within Telegram's limit, preferring
// newline then space boundaries. The limit counts characters, so the split
// works on runes; a byte cut through a multi-byte rune would make the Bot
// API reject the chunk.
func splitMessage(text string) []string {
	if utf8.RuneCountInString(text) <= maxMessageLength {
		return []string{text}
	}

	runes := []rune(text)
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxMessageLength {
			chunks = append(chunks, string(runes))
			break
		}

		cut := lastIndexBefore(runes, '\n', maxMessageLength)
		if cut < maxMessageLength/2 {
			cut = lastIndexBefore(runes, ' ', maxMessageLength)
		}
		if cut < maxMessageLength/2 {
			cut = maxMessageLength
		}

		chunks = append(chunks, string(runes[:cut]))
		runes = trimLeadingSpace(runes[cut:])
	}
	return chunks
}

func lastIndexBefore(runes []rune, r rune, limit int) int {
	for i := limit - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func trimLeadingSpace(runes []rune) []rune {
	for len(runes) > 0 && (runes[0] == ' ' || runes[0] == '\n') {
		runes = runes[1:]
	}
	return runes
}
