package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"
	"golang-stock-sentiment/pkg/utils"
)

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006 at 3:04 PM",
}

// NormalizeResult is the outcome of one normalization batch.
type NormalizeResult struct {
	Articles   []entity.Article
	Duplicates int
	Malformed  int
	Errors     []error
}

// Normalizer turns raw news records into deduplicated, time-ordered Articles.
type Normalizer struct {
	log *logger.Logger
}

func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize drops malformed records, collapses duplicates keeping the first seen, and sorts by publish time.
func (n *Normalizer) Normalize(raw []entity.RawArticle) NormalizeResult {
	var result NormalizeResult
	seen := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		article, err := n.normalizeOne(r)
		if err != nil {
			result.Malformed++
			result.Errors = append(result.Errors, err)
			n.log.Debug("Dropping malformed article", logger.ErrorField(err), logger.StringField("source_url", r.SourceURL))
			continue
		}

		if _, ok := seen[article.ID]; ok {
			result.Duplicates++
			continue
		}
		seen[article.ID] = struct{}{}
		result.Articles = append(result.Articles, article)
	}

	sort.SliceStable(result.Articles, func(i, j int) bool {
		return result.Articles[i].PublishedAt.Before(result.Articles[j].PublishedAt)
	})

	if result.Malformed > 0 {
		n.log.Warn("Dropped malformed articles",
			logger.IntField("malformed", result.Malformed),
			logger.IntField("accepted", len(result.Articles)),
		)
	}
	return result
}

func (n *Normalizer) normalizeOne(r entity.RawArticle) (entity.Article, error) {
	headline := utils.SafeText(r.Headline)
	ticker := strings.ToUpper(strings.TrimSpace(r.Ticker))
	if ticker == "" {
		return entity.Article{}, &entity.MalformedInputError{Field: "ticker", Reason: "is empty", Headline: headline}
	}
	if headline == "" {
		return entity.Article{}, &entity.MalformedInputError{Field: "headline", Reason: "is empty"}
	}

	publishedAt, ok := ParseTimestamp(r.Timestamp)
	if !ok {
		return entity.Article{}, &entity.MalformedInputError{Field: "timestamp", Reason: "is not parseable: " + strconv.Quote(r.Timestamp), Headline: headline}
	}

	return entity.Article{
		ID:          ArticleID(ticker, headline, publishedAt),
		Ticker:      ticker,
		PublishedAt: publishedAt,
		Headline:    headline,
		Body:        utils.SafeText(r.Body),
		SourceURL:   strings.TrimSpace(r.SourceURL),
		Source:      r.Source,
	}, nil
}

// ParseTimestamp parses the timestamp formats news sources are known to emit and returns it in UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	// Bare digits are a Unix epoch: 9-10 digits in seconds, 13 in milliseconds.
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		switch len(value) {
		case 9, 10:
			return time.Unix(n, 0).UTC(), true
		case 13:
			return time.UnixMilli(n).UTC(), true
		default:
			return time.Time{}, false
		}
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ArticleID is the dedup key: same ticker, same headline modulo case and spacing, same timestamp
// rounded to the nearest minute.
func ArticleID(ticker, headline string, publishedAt time.Time) string {
	key := strings.ToUpper(ticker) + "|" + normalizeHeadline(headline) + "|" + publishedAt.UTC().Round(time.Minute).Format(time.RFC3339)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func normalizeHeadline(headline string) string {
	return strings.ToLower(strings.Join(strings.Fields(headline), " "))
}
