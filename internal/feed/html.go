package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadscout/internal/logging"
)

// HTMLClient scrapes the legacy HTML listing as a fallback for sources whose
// JSON endpoint is throttled or unavailable.
type HTMLClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewHTMLClient constructs the scraping fallback client.
func NewHTMLClient(cfg Config, opts ...func(*HTMLClient)) *HTMLClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" || strings.Contains(base, "www.reddit.com") {
		base = "https://old.reddit.com"
	}
	client := &HTMLClient{
		baseURL:    base,
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		httpClient: &http.Client{Timeout: timeout},
	}
	if client.userAgent == "" {
		client.userAgent = "leadscout/1.0"
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// WithHTMLHTTPClient overrides the default HTTP client.
func WithHTMLHTTPClient(httpClient *http.Client) func(*HTMLClient) {
	return func(c *HTMLClient) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// FetchNew scrapes the newest entries for a source. Pagination is not
// attempted; the fallback settles for the first page.
func (c *HTMLClient) FetchNew(ctx context.Context, source string, limit int) ([]Candidate, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New("feed scrape: source required")
	}

	endpoint := fmt.Sprintf("%s/r/%s/new/", c.baseURL, url.PathEscape(source))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("feed scrape: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed scrape: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpStatusError{StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed scrape: parse document: %w", err)
	}

	var candidates []Candidate
	doc.Find("div.thing").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if limit > 0 && len(candidates) >= limit {
			return false
		}
		candidate, ok := scrapeThing(sel, source)
		if !ok {
			return true
		}
		candidates = append(candidates, candidate)
		return true
	})
	return candidates, nil
}

func scrapeThing(sel *goquery.Selection, source string) (Candidate, bool) {
	fullname, _ := sel.Attr("data-fullname")
	fullname = strings.TrimSpace(fullname)
	if !strings.HasPrefix(fullname, "t3_") {
		return Candidate{}, false
	}
	id := strings.TrimPrefix(fullname, "t3_")
	if id == "" {
		return Candidate{}, false
	}

	candidate := Candidate{
		ID:     id,
		Source: source,
	}
	if author, ok := sel.Attr("data-author"); ok {
		candidate.AuthorName = strings.TrimSpace(author)
	}
	if authorID, ok := sel.Attr("data-author-fullname"); ok {
		candidate.AuthorID = strings.TrimSpace(authorID)
	}
	if ts, ok := sel.Attr("data-timestamp"); ok {
		if millis, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64); err == nil {
			candidate.CreatedUTC = time.UnixMilli(millis).UTC()
		}
	}

	title := sel.Find("a.title").First()
	candidate.Title = strings.TrimSpace(title.Text())
	if href, ok := title.Attr("href"); ok {
		candidate.URL = strings.TrimSpace(href)
	}
	candidate.Flair = strings.TrimSpace(sel.Find("span.linkflairlabel").First().Text())

	if scoreText, ok := sel.Find("div.score.unvoted").First().Attr("title"); ok {
		if score, err := strconv.ParseInt(strings.TrimSpace(scoreText), 10, 64); err == nil {
			candidate.UpvoteScore = score
		}
	}
	comments := sel.Find("a.comments").First().Text()
	if fields := strings.Fields(comments); len(fields) > 0 {
		if count, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			candidate.CommentCount = count
		}
	}
	return candidate, true
}

// FallbackClient tries the JSON listing first and falls back to HTML
// scraping when the listing fails.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *slog.Logger
}

// NewFallbackClient combines a primary and fallback client. A nil logger
// disables logging.
func NewFallbackClient(primary, fallback Client, logger *slog.Logger) *FallbackClient {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FallbackClient{
		primary:  primary,
		fallback: fallback,
		logger:   logging.NewComponentLogger(logger, "feed"),
	}
}

// FetchNew delegates to the primary client, retrying through the fallback on
// failure. Context cancellation is never retried.
func (c *FallbackClient) FetchNew(ctx context.Context, source string, limit int) ([]Candidate, error) {
	candidates, err := c.primary.FetchNew(ctx, source, limit)
	if err == nil {
		return candidates, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if c.fallback == nil {
		return nil, err
	}

	c.logger.Warn("listing fetch failed, using scrape fallback",
		logging.String(logging.FieldSource, source),
		logging.Error(err))
	candidates, fallbackErr := c.fallback.FetchNew(ctx, source, limit)
	if fallbackErr != nil {
		return nil, fmt.Errorf("fallback scrape failed: %w (listing error: %s)", fallbackErr, err)
	}
	return candidates, nil
}
