// Package notify sends best-effort admin messages.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/retry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Notifier delivers a message to the operators. Delivery failures never
// reach the caller.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// MessageSender is the part of the bot API used for delivery
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications to one admin chat
type Telegram struct {
	sender MessageSender
	chatID int64
	policy retry.Policy
}

// NewTelegram logs in with a bot token
func NewTelegram(token string, chatID int64, policy retry.Policy) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info().Str("bot", bot.Self.UserName).Int64("chat_id", chatID).Msg("Telegram notifier initialized")
	return NewTelegramWithSender(bot, chatID, policy), nil
}

// NewTelegramWithSender uses an existing sender
func NewTelegramWithSender(sender MessageSender, chatID int64, policy retry.Policy) *Telegram {
	return &Telegram{sender: sender, chatID: chatID, policy: policy}
}

// Notify sends text, retrying per policy, and drops it if delivery keeps failing
func (t *Telegram) Notify(ctx context.Context, text string) {
	retry.Swallow(ctx, t.policy, "telegram.send", func(ctx context.Context) error {
		_, err := t.sender.Send(tgbotapi.NewMessage(t.chatID, text))
		return err
	})
}

// Nop logs notifications instead of sending them
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(_ context.Context, text string) {
	log.Debug().Str("text", text).Msg("Notification (no channel configured)")
}

// TypesCompleted formats the message sent when tournament types run out of games
func TypesCompleted(types []models.TournamentType) string {
	names := make([]string, len(types))
	for i, tt := range types {
		names[i] = tt.String()
	}
	return fmt.Sprintf("Monitoring finished for %s: all games are over, overall rating updated.", strings.Join(names, ", "))
}

// CycleFailed formats the message sent when a score batch was escalated
func CycleFailed(cycleID string, err error) string {
	return fmt.Sprintf("Cycle %s could not write its score batch: %v\nThe batch is in the journal, run replay once the store is back.", cycleID, err)
}
