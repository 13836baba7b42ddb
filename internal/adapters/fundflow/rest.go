package fundflow

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"finsight/internal/domain/fundflow"
	"finsight/pkg/errors"
)

// ProviderID is the registry id of the REST fund-flow provider
const ProviderID = "rest"

const (
	defaultDays = 10
	maxDays     = 120
)

// Config holds the fund-flow endpoint settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RESTProvider reads daily fund-flow series from an HTTP endpoint of the form
// GET {base}/fundflow/{symbol}?days=N
type RESTProvider struct {
	client  *resty.Client
	enabled bool
}

// NewRESTProvider creates the provider. Without a base URL every call fails with ErrBackendAbsent.
func NewRESTProvider(cfg Config) *RESTProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &RESTProvider{client: client, enabled: cfg.BaseURL != ""}
}

func (p *RESTProvider) Name() string { return ProviderID }

type pointDTO struct {
	Date        string  `json:"date"`
	MainNetIn   float64 `json:"main_net_in"`
	RetailNetIn float64 `json:"retail_net_in"`
	NetInRatio  float64 `json:"net_in_ratio"`
}

type seriesDTO struct {
	Symbol string     `json:"symbol"`
	Points []pointDTO `json:"points"`
}

// GetFundFlow returns up to days points, oldest first
func (p *RESTProvider) GetFundFlow(ctx context.Context, symbol string, days int) ([]fundflow.Point, error) {
	if !p.enabled {
		return nil, errors.NewProviderError(ProviderID, "fund_flow", errors.Wrap(errors.ErrBackendAbsent, "endpoint not configured"))
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.NewValidationError("symbol", "required", symbol)
	}
	switch {
	case days <= 0:
		days = defaultDays
	case days > maxDays:
		days = maxDays
	}

	var out seriesDTO
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("days", strconv.Itoa(days)).
		SetResult(&out).
		Get("/fundflow/{symbol}")
	if err != nil {
		switch ctx.Err() {
		case context.Canceled:
			return nil, errors.NewProviderError(ProviderID, "fund_flow", errors.ErrCancelled)
		case context.DeadlineExceeded:
			return nil, errors.NewProviderError(ProviderID, "fund_flow", errors.ErrTimeout)
		}
		return nil, errors.NewProviderError(ProviderID, "fund_flow", errors.Wrap(errors.ErrUnavailable, err.Error()))
	}
	if resp.IsError() {
		return nil, errors.NewProviderError(ProviderID, "fund_flow",
			errors.Wrapf(errors.FromHTTPStatus(resp.StatusCode()), "status %d", resp.StatusCode()))
	}

	points := make([]fundflow.Point, 0, len(out.Points))
	for _, dto := range out.Points {
		date, err := time.Parse("2006-01-02", dto.Date)
		if err != nil {
			return nil, errors.NewProviderError(ProviderID, "fund_flow",
				errors.Wrapf(errors.ErrMalformedResponse, "bad date %q", dto.Date))
		}
		points = append(points, fundflow.Point{
			Date:        date,
			MainNetIn:   dto.MainNetIn,
			RetailNetIn: dto.RetailNetIn,
			NetInRatio:  dto.NetInRatio,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	if len(points) > days {
		points = points[len(points)-days:]
	}
	return points, nil
}
