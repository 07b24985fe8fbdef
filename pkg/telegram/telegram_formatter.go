package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"golang-stock-sentiment/internal/correlator/dto"
	"golang-stock-sentiment/internal/entity"
)

const maxMessageLen = 4090

// FormatWarmupDigest renders warmup outcomes as HTML messages, split so none exceeds the Telegram limit.
func FormatWarmupDigest(date entity.Date, outcomes []dto.WarmupOutcome) []string {
	if len(outcomes) == 0 {
		return []string{fmt.Sprintf("<b>Sentiment correlation %s</b>\n\nNo tickers configured.", date)}
	}

	var messages []string
	var current strings.Builder
	part := 1

	startNewPart := func() {
		current.Reset()
		if part == 1 {
			current.WriteString(fmt.Sprintf("📊 <b>Sentiment correlation %s</b>\n\n", date))
		} else {
			current.WriteString(fmt.Sprintf("📊 <b>Sentiment correlation %s (part %d)</b>\n\n", date, part))
		}
	}
	startNewPart()

	for _, o := range outcomes {
		entry := formatOutcome(o)
		if current.Len()+len(entry) > maxMessageLen {
			messages = append(messages, current.String())
			part++
			startNewPart()
		}
		current.WriteString(entry)
	}
	messages = append(messages, current.String())
	return messages
}

func formatOutcome(o dto.WarmupOutcome) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s</b>\n", html.EscapeString(o.Ticker)))

	if o.Error != "" {
		b.WriteString(fmt.Sprintf("❌ %s\n\n", html.EscapeString(o.Error)))
		return b.String()
	}

	r := o.Result
	b.WriteString(fmt.Sprintf("%s <b>r:</b> %s (n=%d)\n", correlationIcon(r.PearsonR.Valid, r.PearsonR.Float64), formatNullable(r.PearsonR.Valid, r.PearsonR.Float64), r.SampleSize))
	b.WriteString(fmt.Sprintf("💬 <b>Mean sentiment:</b> %s\n", formatNullable(r.Summary.MeanSentiment.Valid, r.Summary.MeanSentiment.Float64)))
	b.WriteString(fmt.Sprintf("🗞 <b>Articles:</b> %d scored, %d 🟢 / %d 🟡 / %d 🔴\n", r.Stats.Scored, r.Summary.Positive, r.Summary.Neutral, r.Summary.Negative))
	if o.Warning != "" {
		b.WriteString(fmt.Sprintf("⚠️ %s\n", html.EscapeString(o.Warning)))
	}
	b.WriteString("\n")
	return b.String()
}

func correlationIcon(valid bool, r float64) string {
	switch {
	case !valid:
		return "⚪"
	case r >= 0.3:
		return "🟢"
	case r <= -0.3:
		return "🔴"
	default:
		return "🟡"
	}
}

func formatNullable(valid bool, v float64) string {
	if !valid {
		return "n/a"
	}
	return fmt.Sprintf("%+.3f", v)
}

// FormatErrorAlertMessage renders an operational failure.
func FormatErrorAlertMessage(at time.Time, errType string, errMsg string) string {
	return fmt.Sprintf("🚨 <b>%s</b>\n<code>%s</code>\n%s",
		html.EscapeString(errType),
		html.EscapeString(errMsg),
		at.UTC().Format(time.RFC3339),
	)
}
