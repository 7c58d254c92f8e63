// Package notify delivers contact-form messages to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Sender is the part of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	token    string
	chat     string
	mu       sync.Mutex
	sender   Sender
	throttle *rate.Limiter
}

// Bot API allows 20 messages per minute into one group.
const groupPerMinute = 20

func NewTelegram(token, chat string) *Telegram {
	return &Telegram{
		token:    strings.TrimSpace(token),
		chat:     strings.TrimSpace(chat),
		throttle: rate.NewLimiter(rate.Every(time.Minute/groupPerMinute), groupPerMinute),
	}
}

// WithThrottle replaces the outbound pacing limiter.
func (t *Telegram) WithThrottle(l *rate.Limiter) *Telegram {
	t.throttle = l
	return t
}

// WithSender injects a ready sender instead of dialing the Bot API.
func (t *Telegram) WithSender(s Sender) *Telegram {
	t.sender = s
	return t
}

func (t *Telegram) Configured() bool { return t.token != "" && t.chat != "" }

// bot creates the Bot API client on first use; NewBotAPI calls getMe.
func (t *Telegram) bot() (Sender, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sender != nil {
		return t.sender, nil
	}
	b, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	t.sender = b
	return b, nil
}

// Send posts an HTML message to the configured chat, waiting for the chat's
// send budget. Numeric chat ids are sent as ids; anything else is treated as
// a channel username.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := t.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("telegram throttle: %w", err)
	}
	s, err := t.bot()
	if err != nil {
		return err
	}
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(t.chat, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(t.chat, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := s.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

type Contact struct {
	Name    string
	Email   string
	Message string
}

// FormatContact renders the message body with HTML-escaped fields.
func FormatContact(c Contact) string {
	return fmt.Sprintf("📨 Новое сообщение с сайта\n\n👤 Имя: %s\n📧 Email: %s\n\n💬 Сообщение:\n%s",
		html.EscapeString(c.Name), html.EscapeString(c.Email), html.EscapeString(c.Message))
}
