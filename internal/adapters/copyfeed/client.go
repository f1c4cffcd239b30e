// Package copyfeed talks to the copy-trade signal provider. The provider
// decides what to copy and at what price/size; this adapter only fetches
// the current list of desired trades and validates rows.
package copyfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// Request is the payload sent on every fetch. It mirrors the provider's
// schema: who we are, how to price, and which traders to copy.
type Request struct {
	Owner           Owner        `json:"owner"`
	PriceConfig     PriceConfig  `json:"price_configuration"`
	Traders         []Trader     `json:"traders"`
	ExcludedMarkets []string     `json:"excluded_markets"`
	IsAggregated    bool         `json:"is_aggregated"`
	DeferExecution  DeferConfig  `json:"defer_execution"`
}

type Owner struct {
	Address             string `json:"address"`
	IsAutoredeemEnabled bool   `json:"is_autoredeem_enabled"`
}

type PriceConfig struct {
	Spread float64     `json:"spread"`
	Buffer float64     `json:"buffer"`
	Limits PriceLimits `json:"limits"`
}

type PriceLimits struct {
	Buy  PriceRange `json:"buy"`
	Sell PriceRange `json:"sell"`
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Trader struct {
	Address      string   `json:"address"`
	Factor       float64  `json:"factor"`
	ExcludedTags []string `json:"excluded_tags"`
	MinShare     float64  `json:"min_share"`
	MaxShare     float64  `json:"max_share"`
}

type DeferConfig struct {
	Enabled          bool    `json:"enabled"`
	HoursBeforeStart float64 `json:"hours_before_start"`
}

// feedRecord is one raw row from the provider.
type feedRecord struct {
	AssetID     string      `json:"asset_id"`
	Side        string      `json:"side"`
	Size        *float64    `json:"size"`
	TargetPrice *float64    `json:"target_price"`
	LimitPrice  *float64    `json:"limit_price"`
	Style       string      `json:"execution_style"`
	CutoffTS    json.Number `json:"cutoff_ts"`
}

// Client fetches desired intents from the copy feed.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	payload Request
}

// NewClient creates a copy feed client. The payload is static per process:
// it encodes the configuration the provider needs to compute net trades.
func NewClient(baseURL, apiKey string, payload Request) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		payload: payload,
	}
}

// FetchIntents asks the provider for the current desired trades.
//
// Errors propagate: an intent-fetch failure aborts the cycle, because "no
// answer" must never be confused with "nothing to copy". A JSON null body
// returns domain.ErrNoIntentData (skip cycle); an empty array returns an
// empty slice (proceed — settlement and cleanup still run). Malformed rows
// are skipped individually.
func (c *Client) FetchIntents(ctx context.Context) ([]domain.DesiredIntent, error) {
	b, err := json.Marshal(c.payload)
	if err != nil {
		return nil, fmt.Errorf("copyfeed.FetchIntents: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("copyfeed.FetchIntents: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("copyfeed.FetchIntents: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("copyfeed.FetchIntents: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("copyfeed.FetchIntents: status %d: %s", resp.StatusCode, body)
	}

	var records []feedRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("copyfeed.FetchIntents: decode: %w", err)
	}
	if records == nil {
		return nil, domain.ErrNoIntentData
	}

	intents := make([]domain.DesiredIntent, 0, len(records))
	for _, rec := range records {
		in, ok := parseRecord(rec)
		if !ok {
			slog.Warn("copyfeed: skipping malformed record", "asset", rec.AssetID, "side", rec.Side)
			continue
		}
		intents = append(intents, in)
	}
	return intents, nil
}

// parseRecord validates one raw row. A bad row is dropped, never fatal.
func parseRecord(rec feedRecord) (domain.DesiredIntent, bool) {
	if rec.Size == nil || rec.TargetPrice == nil {
		return domain.DesiredIntent{}, false
	}

	in := domain.DesiredIntent{
		AssetID:     rec.AssetID,
		Side:        domain.Side(rec.Side),
		Size:        *rec.Size,
		TargetPrice: *rec.TargetPrice,
	}

	switch rec.Style {
	case "LIMIT":
		in.Style = domain.StyleLimit
	case "MARKET", "":
		// Absent style means execute now, matching the provider's default.
		in.Style = domain.StyleMarket
	default:
		return domain.DesiredIntent{}, false
	}

	if rec.LimitPrice != nil {
		in.LimitPrice = *rec.LimitPrice
	} else {
		in.LimitPrice = *rec.TargetPrice
	}

	if rec.CutoffTS != "" {
		ts, err := rec.CutoffTS.Int64()
		if err != nil || ts <= 0 {
			return domain.DesiredIntent{}, false
		}
		t := time.Unix(ts, 0).UTC()
		in.Cutoff = &t
	}

	if !in.Valid() {
		return domain.DesiredIntent{}, false
	}
	return in, true
}
