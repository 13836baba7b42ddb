package finnhub

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"finsight/internal/domain/news"
	"finsight/internal/domain/symbol"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// ProviderID is the registry id used for both the news and symbol-search capabilities
const ProviderID = "finnhub"

const dateLayout = "2006-01-02"

// Config holds Finnhub connection settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the Finnhub REST API. It implements news.Provider and symbol.Searcher.
type Client struct {
	http   *resty.Client
	apiKey string
	log    *logger.Logger
}

// NewClient creates a Finnhub client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finnhub.io/api/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   http,
		apiKey: cfg.APIKey,
		log:    logger.Get().With("component", "finnhub"),
	}
}

func (c *Client) Name() string { return ProviderID }

type newsItem struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Collect returns company news for a symbol, or general market news when symbol is empty.
// General news has no date filter upstream, so the window is applied here.
func (c *Client) Collect(ctx context.Context, sym string, from, to time.Time) ([]news.Item, error) {
	sym = strings.ToUpper(strings.TrimSpace(sym))

	var raw []newsItem
	var err error
	if sym == "" {
		err = c.get(ctx, "news", "/news", map[string]string{"category": "general"}, &raw)
	} else {
		err = c.get(ctx, "news", "/company-news", map[string]string{
			"symbol": sym,
			"from":   from.UTC().Format(dateLayout),
			"to":     to.UTC().Format(dateLayout),
		}, &raw)
	}
	if err != nil {
		return nil, err
	}

	items := make([]news.Item, 0, len(raw))
	for _, r := range raw {
		published := time.Unix(r.DateTime, 0).UTC()
		if !from.IsZero() && published.Before(from) {
			continue
		}
		if !to.IsZero() && published.After(to) {
			continue
		}
		items = append(items, news.Item{
			ID:          strconv.FormatInt(r.ID, 10),
			Title:       r.Headline,
			Source:      r.Source,
			Category:    r.Category,
			Content:     r.Summary,
			URL:         r.URL,
			Related:     r.Related,
			PublishedAt: published,
		})
	}
	return items, nil
}

type searchResponse struct {
	Count  int `json:"count"`
	Result []struct {
		Description   string `json:"description"`
		DisplaySymbol string `json:"displaySymbol"`
		Symbol        string `json:"symbol"`
		Type          string `json:"type"`
	} `json:"result"`
}

// Search resolves free text to symbols
func (c *Client) Search(ctx context.Context, query string) ([]symbol.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.NewValidationError("query", "required", query)
	}

	var resp searchResponse
	if err := c.get(ctx, "search", "/search", map[string]string{"q": query}, &resp); err != nil {
		return nil, err
	}

	matches := make([]symbol.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		sym := r.Symbol
		if sym == "" {
			sym = r.DisplaySymbol
		}
		matches = append(matches, symbol.Match{Symbol: sym, Description: r.Description, Type: r.Type})
	}
	return matches, nil
}

func (c *Client) get(ctx context.Context, op, path string, params map[string]string, out interface{}) error {
	if c.apiKey == "" {
		return errors.NewProviderError(ProviderID, op, errors.Wrap(errors.ErrBackendAbsent, "api key not configured"))
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetHeader("X-Finnhub-Token", c.apiKey).
		SetResult(out).
		Get(path)
	if err != nil {
		switch ctx.Err() {
		case context.Canceled:
			return errors.NewProviderError(ProviderID, op, errors.ErrCancelled)
		case context.DeadlineExceeded:
			return errors.NewProviderError(ProviderID, op, errors.ErrTimeout)
		}
		return errors.NewProviderError(ProviderID, op, errors.Wrap(errors.ErrUnavailable, err.Error()))
	}
	if resp.IsError() {
		c.log.Debugw("Finnhub request failed", "op", op, "status", resp.StatusCode())
		return errors.NewProviderError(ProviderID, op,
			errors.Wrapf(errors.FromHTTPStatus(resp.StatusCode()), "status %d", resp.StatusCode()))
	}
	return nil
}
