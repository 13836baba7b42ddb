package fundflow

import (
	"context"
	"time"
)

// Point is one fund-flow observation
type Point struct {
	Date        time.Time `json:"date"`
	MainNetIn   float64   `json:"main_net_in"`
	RetailNetIn float64   `json:"retail_net_in"`
	NetInRatio  float64   `json:"net_in_ratio"`
}

// Series is a fund-flow series tagged with its source
type Series struct {
	Symbol   string   `json:"symbol"`
	Points   []Point  `json:"points"`
	Source   string   `json:"source"`
	Warnings []string `json:"warnings,omitempty"`
}

// NetTotal sums the main net inflow over the series
func (s Series) NetTotal() float64 {
	var total float64
	for _, p := range s.Points {
		total += p.MainNetIn
	}
	return total
}

// Provider supplies fund-flow series
type Provider interface {
	Name() string
	GetFundFlow(ctx context.Context, symbol string, days int) ([]Point, error)
}
