package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.Alerter = (*Alerter)(nil)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Alerter posts operational anomalies to the configured admin chats.
type Alerter struct {
	bot      sender
	chatIDs  []int64
	hostname string
	log      *zerolog.Logger
}

func NewAlerter(cfg config.AlertsConfig, hostname string, logger *zerolog.Logger) (*Alerter, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("alerts.telegram_token is empty")
	}
	if len(cfg.AdminChatIDs) == 0 {
		return nil, errors.New("alerts.admin_chat_ids is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	return newAlerter(bot, cfg.AdminChatIDs, hostname, logger), nil
}

func newAlerter(bot sender, chatIDs []int64, hostname string, logger *zerolog.Logger) *Alerter {
	l := logger.With().Str("component", "telegram-alerter").Logger()
	return &Alerter{bot: bot, chatIDs: chatIDs, hostname: hostname, log: &l}
}

func (a *Alerter) Alert(ctx context.Context, subject, text string) error {
	body := formatAlert(a.hostname, subject, text)
	var errs []error
	for _, id := range a.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, body)
		msg.DisableWebPagePreview = true
		if _, err := a.bot.Send(msg); err != nil {
			a.log.Warn().Err(err).Int64("chat_id", id).Msg("alert delivery failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func formatAlert(host, subject, text string) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.ToUpper(subject))
	b.WriteString("]")
	if host != "" {
		b.WriteString(" @")
		b.WriteString(host)
	}
	b.WriteString("\n")
	b.WriteString(text)
	return b.String()
}

// LogAlerter is used when no Telegram token is configured.
type LogAlerter struct {
	log *zerolog.Logger
}

func NewLogAlerter(logger *zerolog.Logger) *LogAlerter {
	l := logger.With().Str("component", "log-alerter").Logger()
	return &LogAlerter{log: &l}
}

func (a *LogAlerter) Alert(_ context.Context, subject, text string) error {
	a.log.Warn().Str("subject", subject).Msg(text)
	return nil
}
