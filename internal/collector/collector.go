// Package collector pages through the external shopping search API and turns
// the responses into ranked snapshots.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/metrics"
	"rankwatch/internal/models"
	"rankwatch/internal/pacing"
)

// Defaults matching the search API limits.
const (
	DefaultBaseURL    = "https://openapi.naver.com/v1/search/shop.json"
	DefaultPageSize   = 100
	DefaultMaxResults = 300
	DefaultTimeout    = 10 * time.Second
	DefaultPageDelay  = 100 * time.Millisecond
)

// Config configures a Collector.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string

	PageSize   int           // results per request
	MaxResults int           // rank horizon
	PageDelay  time.Duration // courtesy wait between page requests
	Timeout    time.Duration // per request

	MaxRetries      uint64        // retries per page after the first attempt
	RetryBaseDelay  time.Duration // first backoff interval
	RetryMaxElapsed time.Duration // give up on a page after this long
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.RetryMaxElapsed <= 0 {
		c.RetryMaxElapsed = 30 * time.Second
	}
}

// Collector fetches up to MaxResults ranked listings for a keyword.
type Collector struct {
	cfg       Config
	client    *http.Client
	logger    *logrus.Logger
	clock     quartz.Clock
	sanitizer *bluemonday.Policy
}

// Option customises a Collector.
type Option func(*Collector)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Collector) { c.client = client }
}

// WithClock replaces the real clock used for page delays.
func WithClock(clock quartz.Clock) Option {
	return func(c *Collector) { c.clock = clock }
}

// New creates a new collector.
func New(cfg Config, logger *logrus.Logger, opts ...Option) *Collector {
	cfg.setDefaults()
	c := &Collector{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
		clock:     quartz.NewReal(),
		sanitizer: bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse is the wire shape of one search page.
type searchResponse struct {
	Total int          `json:"total"`
	Start int          `json:"start"`
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ProductID externalID `json:"productId"`
	Title     string     `json:"title"`
	MallName  string     `json:"mallName"`
}

// externalID accepts product ids encoded either as JSON strings or numbers.
type externalID string

func (e *externalID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = externalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*e = externalID(n.String())
	return nil
}

var errMalformedPage = errors.New("malformed search page")

// statusError is returned for non-2xx responses.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("search api returned HTTP %d", e.Code)
}

// Collect returns the ranked snapshot for keyword. A page that fails after its
// retries ends collection and the results gathered so far are returned, so an
// empty slice means no data rather than an error.
func (c *Collector) Collect(ctx context.Context, keyword string) []models.ResultItem {
	log := c.logger.WithField("keyword", keyword)
	results := make([]models.ResultItem, 0, c.cfg.MaxResults)

	for offset := 0; offset < c.cfg.MaxResults; offset += c.cfg.PageSize {
		if offset > 0 {
			if err := pacing.Wait(ctx, c.clock, c.cfg.PageDelay, "collector", "page"); err != nil {
				log.WithError(err).Warn("collection interrupted")
				break
			}
		}

		display := min(c.cfg.PageSize, c.cfg.MaxResults-offset)
		items, err := c.fetchPage(ctx, keyword, offset+1, display)
		if err != nil {
			metrics.CollectorPages.WithLabelValues("error").Inc()
			log.WithError(err).WithFields(logrus.Fields{
				"start":     offset + 1,
				"collected": len(results),
			}).Warn("search page failed, keeping partial results")
			break
		}
		metrics.CollectorPages.WithLabelValues("ok").Inc()

		if len(items) == 0 {
			break
		}

		for i, item := range items {
			results = append(results, models.ResultItem{
				Rank:           offset + i + 1,
				ExternalItemID: string(item.ProductID),
				Title:          c.cleanTitle(item.Title),
				StoreName:      strings.TrimSpace(item.MallName),
			})
		}

		if len(items) < display {
			break
		}
	}

	log.WithField("results", len(results)).Debug("collection finished")
	return results
}

// fetchPage requests one page, retrying transient failures with exponential backoff.
func (c *Collector) fetchPage(ctx context.Context, keyword string, start, display int) ([]searchItem, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryBaseDelay
	eb.MaxElapsedTime = c.cfg.RetryMaxElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.cfg.MaxRetries), ctx)

	var items []searchItem
	err := backoff.RetryNotify(func() error {
		var err error
		items, err = c.requestPage(ctx, keyword, start, display)
		if err != nil && (ctx.Err() != nil || !isRetryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		metrics.CollectorPages.WithLabelValues("retry").Inc()
		c.logger.WithError(err).WithFields(logrus.Fields{
			"keyword": keyword,
			"start":   start,
			"wait":    wait,
		}).Debug("retrying search page")
	})
	return items, err
}

func (c *Collector) requestPage(ctx context.Context, keyword string, start, display int) ([]searchItem, error) {
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("display", strconv.Itoa(display))
	q.Set("start", strconv.Itoa(start))
	q.Set("sort", "sim")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.cfg.ClientID)
	req.Header.Set("X-Naver-Client-Secret", c.cfg.ClientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &statusError{Code: resp.StatusCode}
	}

	var page searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedPage, err)
	}
	return page.Items, nil
}

// isRetryable reports whether a page failure is worth another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, errMalformedPage) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// cleanTitle strips the highlight markup the search API wraps around matches.
func (c *Collector) cleanTitle(title string) string {
	return strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(title)))
}
