//go:build !integration

package telegram

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	fail map[int64]bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if f.fail[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("forbidden")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func TestAlerter(t *testing.T) {
	logger := zerolog.New(io.Discard)

	t.Run("should fan out to every admin chat", func(t *testing.T) {
		bot := &fakeSender{}
		a := newAlerter(bot, []int64{1, 2}, "worker-1", &logger)

		if err := a.Alert(context.Background(), "quota_overrun", "user u1 clamped by 2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(bot.sent) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(bot.sent))
		}
		if !strings.HasPrefix(bot.sent[0].Text, "[QUOTA_OVERRUN] @worker-1\n") {
			t.Errorf("unexpected alert body %q", bot.sent[0].Text)
		}
	})

	t.Run("should keep delivering when one chat fails", func(t *testing.T) {
		bot := &fakeSender{fail: map[int64]bool{1: true}}
		a := newAlerter(bot, []int64{1, 2}, "", &logger)

		err := a.Alert(context.Background(), "stuck", "task t1")
		if err == nil {
			t.Fatal("expected joined error for the failed chat")
		}
		if len(bot.sent) != 1 || bot.sent[0].ChatID != 2 {
			t.Errorf("expected delivery to chat 2, got %+v", bot.sent)
		}
	})
}
