package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type recorder struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		r.sent = append(r.sent, m)
	}
	return tgbotapi.Message{}, r.err
}

func TestSendToNumericChat(t *testing.T) {
	rec := &recorder{}
	tg := NewTelegram("token", "-100123").WithSender(rec)

	require.NoError(t, tg.Send(context.Background(), "<b>hi</b>"))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, int64(-100123), rec.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, rec.sent[0].ParseMode)
}

func TestSendToChannel(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, NewTelegram("token", "@site_feedback").WithSender(rec).Send(context.Background(), "x"))
	assert.Equal(t, "@site_feedback", rec.sent[0].ChannelUsername)
}

func TestSendError(t *testing.T) {
	rec := &recorder{err: errors.New("chat not found")}
	err := NewTelegram("token", "1").WithSender(rec).Send(context.Background(), "x")
	assert.ErrorContains(t, err, "chat not found")
}

func TestConfigured(t *testing.T) {
	assert.False(t, NewTelegram("", "1").Configured())
	assert.False(t, NewTelegram("t", " ").Configured())
	assert.True(t, NewTelegram("t", "1").Configured())
}

func TestFormatContactEscapes(t *testing.T) {
	got := FormatContact(Contact{Name: "<Ann>", Email: "a&b@x.ru", Message: "line1\nline2"})
	assert.Equal(t, "📨 Новое сообщение с сайта\n\n👤 Имя: &lt;Ann&gt;\n📧 Email: a&amp;b@x.ru\n\n💬 Сообщение:\nline1\nline2", got)
}

func TestSendWaitsForBudget(t *testing.T) {
	rec := &recorder{}
	tg := NewTelegram("token", "1").WithSender(rec).WithThrottle(rate.NewLimiter(rate.Every(time.Hour), 1))

	require.NoError(t, tg.Send(context.Background(), "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tg.Send(ctx, "second")
	assert.ErrorContains(t, err, "telegram throttle")
	assert.Len(t, rec.sent, 1)
}

func TestSendCanceled(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewTelegram("token", "1").WithSender(rec).Send(ctx, "x"), context.Canceled)
	assert.Empty(t, rec.sent)
}
