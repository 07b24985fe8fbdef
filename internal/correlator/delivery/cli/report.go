package cli

import (
	"fmt"
	"strconv"
	"strings"

	"golang-stock-sentiment/internal/entity"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guregu/null/v6"
)

var (
	positiveColor = lipgloss.Color("#10B981")
	negativeColor = lipgloss.Color("#EF4444")
	mutedColor    = lipgloss.Color("#6B7280")
	borderColor   = lipgloss.Color("#374151")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// RenderReport formats a correlation result for a terminal.
func RenderReport(result *entity.CorrelationResult, cached bool, warning string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", result.Ticker, result.DateRange)))
	b.WriteString("\n\n")

	line := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-16s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}
	line("Pearson r", colorize(result.PearsonR, "%+.4f"))
	line("Joined days", strconv.Itoa(result.SampleSize))
	for _, lag := range result.Lags {
		if lag.Lag == 0 {
			continue
		}
		line(fmt.Sprintf("Lag %d r", lag.Lag), fmt.Sprintf("%s (n=%d)", colorize(lag.PearsonR, "%+.4f"), lag.SampleSize))
	}
	line("Mean sentiment", colorize(result.Summary.MeanSentiment, "%+.3f"))
	line("Labels", fmt.Sprintf("%d positive, %d neutral, %d negative", result.Summary.Positive, result.Summary.Neutral, result.Summary.Negative))
	line("Articles", fmt.Sprintf("%d scored of %d, %d failed, %d duplicates", result.Stats.Scored, result.Stats.Articles, result.Stats.ScoreFailures, result.Stats.Duplicates))
	line("Model", result.ModelVersion)
	if result.NewsSource != "" {
		line("News source", result.NewsSource)
	}
	if cached {
		line("Cache", "hit")
	}
	if warning != "" {
		b.WriteString(warningStyle.Render("! " + warning))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	rows := make([][]string, 0, len(result.PerDay))
	for _, p := range result.PerDay {
		rows = append(rows, []string{
			p.TradingDay.String(),
			strconv.Itoa(p.ArticleCount),
			colorize(p.MeanSentiment, "%+.3f"),
			plain(p.Close, "%.2f"),
			colorize(p.PctChange, "%+.2f%%"),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers("Day", "Articles", "Sentiment", "Close", "Change").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	b.WriteString(t.Render())
	b.WriteString("\n")

	return b.String()
}

func plain(v null.Float, format string) string {
	if !v.Valid {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("-")
	}
	return fmt.Sprintf(format, v.Float64)
}

func colorize(v null.Float, format string) string {
	if !v.Valid {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("n/a")
	}
	text := fmt.Sprintf(format, v.Float64)
	switch {
	case v.Float64 > 0:
		return lipgloss.NewStyle().Foreground(positiveColor).Render(text)
	case v.Float64 < 0:
		return lipgloss.NewStyle().Foreground(negativeColor).Render(text)
	}
	return text
}
