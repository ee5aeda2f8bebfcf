// Package arrange asks an external layout service for new canvas positions
// and reconciles them into the board.
package arrange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
)

// Criterion is the grouping the arrangement service should apply.
type Criterion string

const (
	ByTheme   Criterion = "theme"
	ByStage   Criterion = "stage"
	ByImpact  Criterion = "impact"
	ByQuarter Criterion = "quarter"
)

// ParseCriterion parses a criterion name. The empty string means theme.
func ParseCriterion(s string) (Criterion, error) {
	switch c := Criterion(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return ByTheme, nil
	case ByTheme, ByStage, ByImpact, ByQuarter:
		return c, nil
	}
	return "", apperr.New(apperr.CodeInvalidInput, "arrange.ParseCriterion", "unknown criterion %q", s)
}

// ItemSummary is the minimal projection of a canvas item sent to the
// service. Features fill Stage and Priority, ideas fill Theme and Impact.
type ItemSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Theme     string `json:"theme,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Impact    string `json:"impact,omitempty"`
	StartDate string `json:"start_date,omitempty"`
}

// Position is one suggested placement.
type Position struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Cluster string  `json:"cluster,omitempty"`
}

// Request is the body sent to the arrangement endpoint.
type Request struct {
	Items     []ItemSummary `json:"items"`
	ArrangeBy Criterion     `json:"arrangeBy"`
}

// Response is the body returned by the arrangement endpoint.
type Response struct {
	Positions []Position `json:"positions"`
}

// Arranger returns suggested positions for items.
type Arranger interface {
	Arrange(ctx context.Context, items []ItemSummary, by Criterion) ([]Position, error)
}

// ArrangerFunc adapts a function to Arranger.
type ArrangerFunc func(ctx context.Context, items []ItemSummary, by Criterion) ([]Position, error)

// Arrange calls f.
func (f ArrangerFunc) Arrange(ctx context.Context, items []ItemSummary, by Criterion) ([]Position, error) {
	return f(ctx, items, by)
}

// Client talks to the arrangement and insights endpoints over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// URL is the base URL; requests go to URL/arrange and URL/insights.
	URL string `yaml:"url"`

	// APIKey is sent as a bearer token when set.
	APIKey string `yaml:"api_key"`

	// Timeout bounds every call. Zero means 30s.
	Timeout time.Duration `yaml:"timeout"`
}

// NewClient returns a client for cfg.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "arrange-client")),
	}
}

// Arrange implements Arranger.
func (c *Client) Arrange(ctx context.Context, items []ItemSummary, by Criterion) ([]Position, error) {
	var resp Response
	if err := c.post(ctx, "arrange", Request{Items: items, ArrangeBy: by}, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// Insights forwards items to the insights endpoint and returns its body
// untouched. The board never inspects it.
func (c *Client) Insights(ctx context.Context, items []ItemSummary) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "insights", map[string]any{"items": items}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	op := "arrange.Client." + endpoint
	if c.baseURL == "" {
		return apperr.New(apperr.CodeInvalidConfig, op, "service URL is not configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, op, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInvalidConfig, op, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("calling service", slog.String("endpoint", endpoint), slog.Int("bytes", len(payload)))
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeTransportFailure, op, "request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeTransportFailure, op, "read response")
	}
	if resp.StatusCode/100 != 2 {
		return apperr.New(apperr.CodeTransportFailure, op, "service returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(err, apperr.CodeTransportFailure, op, fmt.Sprintf("decode response (%d bytes)", len(data)))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
