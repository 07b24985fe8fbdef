package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang-stock-sentiment/internal/correlator/dto"
	"golang-stock-sentiment/internal/entity"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestClient_SendMessage(t *testing.T) {
	sender := &fakeSender{}
	c := &client{bot: sender, chatID: 42}

	require.NoError(t, c.SendMessage(context.Background(), "<b>hi</b>"))
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.True(t, msg.DisableWebPagePreview)
}

func TestClient_SendMessageErrors(t *testing.T) {
	c := &client{bot: &fakeSender{err: errors.New("forbidden")}, chatID: 1}
	assert.ErrorContains(t, c.SendMessage(context.Background(), "x"), "forbidden")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.SendMessage(ctx, "x"), context.Canceled)
}

func TestFormatWarmupDigest(t *testing.T) {
	date := entity.MustParseDate("2024-03-15")
	outcomes := []dto.WarmupOutcome{
		{
			Ticker: "AAPL",
			Result: &entity.CorrelationResult{
				PearsonR:   null.FloatFrom(0.51),
				SampleSize: 14,
				Summary:    entity.SentimentSummary{MeanSentiment: null.FloatFrom(0.2), Positive: 5, Neutral: 3, Negative: 1},
				Stats:      entity.RunStats{Scored: 9},
			},
		},
		{
			Ticker:  "TSLA",
			Result:  &entity.CorrelationResult{SampleSize: 2},
			Warning: "insufficient data <2 days>",
		},
		{Ticker: "XYZ", Error: "price unavailable for XYZ"},
	}

	messages := FormatWarmupDigest(date, outcomes)
	require.Len(t, messages, 1)
	msg := messages[0]

	assert.Contains(t, msg, "Sentiment correlation 2024-03-15")
	assert.Contains(t, msg, "🟢 <b>r:</b> +0.510 (n=14)")
	assert.Contains(t, msg, "⚪ <b>r:</b> n/a (n=2)")
	assert.Contains(t, msg, "insufficient data &lt;2 days&gt;")
	assert.Contains(t, msg, "❌ price unavailable for XYZ")
}

func TestFormatWarmupDigest_SplitsLongDigests(t *testing.T) {
	var outcomes []dto.WarmupOutcome
	for i := 0; i < 200; i++ {
		outcomes = append(outcomes, dto.WarmupOutcome{Ticker: "T" + strings.Repeat("X", 5), Error: strings.Repeat("e", 40)})
	}

	messages := FormatWarmupDigest(entity.MustParseDate("2024-03-15"), outcomes)
	require.Greater(t, len(messages), 1)
	for _, m := range messages {
		assert.LessOrEqual(t, len(m), maxMessageLen)
	}
	assert.Contains(t, messages[1], "(part 2)")
}

func TestFormatErrorAlertMessage(t *testing.T) {
	msg := FormatErrorAlertMessage(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), "Warmup", "a < b")
	assert.Contains(t, msg, "<b>Warmup</b>")
	assert.Contains(t, msg, "a &lt; b")
	assert.Contains(t, msg, "2024-03-15T12:00:00Z")
}
