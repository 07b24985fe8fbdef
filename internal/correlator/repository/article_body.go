package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang-stock-sentiment/pkg/logger"
	"golang-stock-sentiment/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
)

// bodyFetcher downloads an article page and extracts its readable text.
type bodyFetcher struct {
	client    *http.Client
	userAgent string
	log       *logger.Logger
}

func newBodyFetcher(userAgent string, log *logger.Logger) *bodyFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &bodyFetcher{
		client:    &http.Client{Timeout: 15 * time.Second},
		userAgent: userAgent,
		log:       log,
	}
}

func (f *bodyFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for article body: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article body: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch article body, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read article body: %w", err)
	}

	doc, err := readability.NewDocument(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse article body: %w", err)
	}

	return htmlText(doc.Content())
}

// htmlText flattens an HTML fragment into cleaned plain text.
func htmlText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(fragment)))
	if err != nil {
		return "", fmt.Errorf("failed to parse html fragment: %w", err)
	}
	doc.Find("script, style").Remove()
	return utils.SafeText(doc.Text()), nil
}
