// Package notify delivers trade updates to users over Telegram.
package notify

import (
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sniper-core/pkg/db"
)

// Notifier sends a message to a user. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Send(userID, text string) error
}

// ChatIDs resolves a user to their linked Telegram chat. Satisfied by
// *db.Queries.
type ChatIDs interface {
	GetTelegramChatID(userID string) (int64, error)
}

// sender is the Bot API surface Telegram needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends messages through the Bot API to each user's linked
// chat. Users without a linked chat are skipped silently.
type Telegram struct {
	bot   sender
	chats ChatIDs
}

// NewTelegram connects to the Bot API. An empty token returns a Noop
// notifier so callers never have to branch.
func NewTelegram(token string, chats ChatIDs) (Notifier, error) {
	if token == "" {
		log.Printf("notify: no bot token configured, notifications disabled")
		return Noop{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: connect bot: %w", err)
	}
	log.Printf("notify: authorized as @%s", bot.Self.UserName)
	return &Telegram{bot: bot, chats: chats}, nil
}

func (t *Telegram) Send(userID, text string) error {
	chatID, err := t.chats.GetTelegramChatID(userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: resolve chat for %s: %w", userID, err)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: send to %d: %w", chatID, err)
	}
	return nil
}

// Noop drops all notifications.
type Noop struct{}

func (Noop) Send(userID, text string) error { return nil }

// SolscanTx renders a transaction link for messages.
func SolscanTx(signature string) string {
	return "https://solscan.io/tx/" + signature
}
