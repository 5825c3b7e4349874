package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
	maxPageSize           = 100
)

// Config captures the runtime settings for the listing API.
type Config struct {
	BaseURL        string
	UserAgent      string
	TimeoutSeconds int
}

// ListingClient fetches entries through the public JSON listing endpoint.
type ListingClient struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*ListingClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *ListingClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *ListingClient) {
		c.retryMaxAttempts = attempts
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *ListingClient) {
		c.sleeper = sleeper
	}
}

// NewListingClient constructs a listing client from the supplied configuration.
func NewListingClient(cfg Config, opts ...Option) *ListingClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &ListingClient{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			UserAgent:      strings.TrimSpace(cfg.UserAgent),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://www.reddit.com"
	}
	if client.cfg.UserAgent == "" {
		client.cfg.UserAgent = "leadscout/1.0"
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("feed request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type listingResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data listingEntry `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type listingEntry struct {
	ID             string  `json:"id"`
	Author         string  `json:"author"`
	AuthorFullname string  `json:"author_fullname"`
	CreatedUTC     float64 `json:"created_utc"`
	Title          string  `json:"title"`
	Selftext       string  `json:"selftext"`
	LinkFlairText  string  `json:"link_flair_text"`
	Score          int64   `json:"score"`
	NumComments    int64   `json:"num_comments"`
	Permalink      string  `json:"permalink"`
	URL            string  `json:"url"`
	PostHint       string  `json:"post_hint"`
	IsVideo        bool    `json:"is_video"`
}

// FetchNew pages through the listing endpoint until limit entries are
// collected or the feed runs out. Entries come back newest first.
func (c *ListingClient) FetchNew(ctx context.Context, source string, limit int) ([]Candidate, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New("feed fetch: source required")
	}
	if limit <= 0 {
		limit = maxPageSize
	}

	var (
		candidates []Candidate
		after      string
	)
	for len(candidates) < limit {
		pageSize := limit - len(candidates)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		page, nextAfter, err := c.fetchPage(ctx, source, pageSize, after)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, page...)
		if nextAfter == "" || len(page) == 0 {
			break
		}
		after = nextAfter
	}
	return candidates, nil
}

func (c *ListingClient) fetchPage(ctx context.Context, source string, pageSize int, after string) ([]Candidate, string, error) {
	endpoint := fmt.Sprintf("%s/r/%s/new.json", c.cfg.BaseURL, url.PathEscape(source))
	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	query.Set("raw_json", "1")
	if after != "" {
		query.Set("after", after)
	}
	endpoint += "?" + query.Encode()

	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return nil, "", err
	}

	var listing listingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, "", fmt.Errorf("feed fetch: decode listing: %w", err)
	}

	candidates := make([]Candidate, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		candidate, ok := entryToCandidate(child.Data, source, c.cfg.BaseURL)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, listing.Data.After, nil
}

func entryToCandidate(entry listingEntry, source, baseURL string) (Candidate, bool) {
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		return Candidate{}, false
	}
	candidate := Candidate{
		ID:           id,
		Source:       source,
		AuthorID:     strings.TrimSpace(entry.AuthorFullname),
		AuthorName:   strings.TrimSpace(entry.Author),
		Title:        strings.TrimSpace(entry.Title),
		Body:         strings.TrimSpace(entry.Selftext),
		Flair:        strings.TrimSpace(entry.LinkFlairText),
		MediaURL:     strings.TrimSpace(entry.URL),
		PostHint:     strings.TrimSpace(entry.PostHint),
		IsVideo:      entry.IsVideo,
		UpvoteScore:  entry.Score,
		CommentCount: entry.NumComments,
	}
	if entry.CreatedUTC > 0 {
		seconds := int64(entry.CreatedUTC)
		candidate.CreatedUTC = time.Unix(seconds, 0).UTC()
	}
	if permalink := strings.TrimSpace(entry.Permalink); permalink != "" {
		candidate.URL = baseURL + permalink
	} else {
		candidate.URL = strings.TrimSpace(entry.URL)
	}
	// Deleted accounts surface as the literal string "[deleted]" with no
	// fullname; such entries carry no usable author identity.
	if candidate.AuthorName == "[deleted]" {
		candidate.AuthorID = ""
		candidate.AuthorName = ""
	}
	return candidate, true
}

type aboutResponse struct {
	Data struct {
		CreatedUTC       float64 `json:"created_utc"`
		CommentKarma     int64   `json:"comment_karma"`
		LinkKarma        int64   `json:"link_karma"`
		HasVerifiedEmail bool    `json:"has_verified_email"`
	} `json:"data"`
}

// FetchAuthorProfile reads the public about endpoint for a username.
func (c *ListingClient) FetchAuthorProfile(ctx context.Context, username string) (AuthorProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return AuthorProfile{}, errors.New("feed profile: username required")
	}

	endpoint := fmt.Sprintf("%s/user/%s/about.json?raw_json=1", c.cfg.BaseURL, url.PathEscape(username))
	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return AuthorProfile{}, err
	}

	var about aboutResponse
	if err := json.Unmarshal(body, &about); err != nil {
		return AuthorProfile{}, fmt.Errorf("feed profile: decode about payload: %w", err)
	}

	profile := AuthorProfile{
		CommentKarma: about.Data.CommentKarma,
		LinkKarma:    about.Data.LinkKarma,
		IsVerified:   about.Data.HasVerifiedEmail,
	}
	if about.Data.CreatedUTC > 0 {
		profile.CreatedUTC = time.Unix(int64(about.Data.CreatedUTC), 0).UTC()
	}
	return profile, nil
}

func (c *ListingClient) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.getOnce(ctx, endpoint)
		if err == nil {
			return body, nil
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return nil, err
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
		lastErr = err
	}
	return nil, fmt.Errorf("feed fetch: failed after %d attempts: %w", attempts, lastErr)
}

func (c *ListingClient) getOnce(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("feed request: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	return body, nil
}

func (c *ListingClient) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}
	return c.backoffDelay(attempt), true
}

func (c *ListingClient) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	if delay <= 0 {
		delay = defaultRetryBaseDelay
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *ListingClient) capDelay(delay time.Duration) time.Duration {
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	if delay < 0 {
		return 0
	}
	return delay
}

func (c *ListingClient) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
