// Package dataforseo wraps the DataForSEO Labs and SERP live
// endpoints used for keyword metrics and competitor lookups.
package dataforseo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/funnelforge/internal/logger"
)

const (
	defaultBaseURL      = "https://api.dataforseo.com"
	defaultTimeout      = 30 * time.Second
	defaultLocationCode = 2840 // United States
	defaultLanguage     = "en"
	defaultMinVolume    = 50
	defaultLimit        = 50

	serpDepth      = 20
	topCompetitors = 5
)

// ErrNoResults is returned when the API call succeeded but carried no
// usable items.
var ErrNoResults = errors.New("dataforseo: no results")

// Config configures a Client.
type Config struct {
	Login    string
	Password string
	// MinVolume filters out keywords below this monthly search volume.
	MinVolume int
	// Limit caps the number of keyword ideas requested.
	Limit int
	// BaseURL overrides the API host, used in tests.
	BaseURL string
	Timeout time.Duration
}

// KeywordMetrics is one keyword idea with its market figures.
type KeywordMetrics struct {
	Keyword     string
	Volume      int
	CPC         float64
	Competition float64
}

// Competitor is one organic SERP result.
type Competitor struct {
	Domain string
	Title  string
	URL    string
}

// Client talks to the DataForSEO v3 API with Basic authentication.
type Client struct {
	client    *http.Client
	login     string
	password  string
	baseURL   string
	minVolume int
	limit     int
	logger    logger.Interface
}

// New builds a Client. Zero config values fall back to package
// defaults.
func New(cfg Config, log logger.Interface) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	minVolume := cfg.MinVolume
	if minVolume <= 0 {
		minVolume = defaultMinVolume
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Client{
		client:    &http.Client{Timeout: timeout},
		login:     cfg.Login,
		password:  cfg.Password,
		baseURL:   baseURL,
		minVolume: minVolume,
		limit:     limit,
		logger:    log.WithComponent("dataforseo"),
	}
}

// KeywordIdeas returns keyword ideas seeded by the given term, already
// filtered to the configured volume floor and ordered by volume
// descending, as the API returns them.
func (c *Client) KeywordIdeas(ctx context.Context, seed, locale string) ([]KeywordMetrics, error) {
	task := map[string]any{
		"keywords":      []string{seed},
		"location_code": locationCode(locale),
		"language_code": languageCode(locale),
		"limit":         c.limit,
		"filters": []any{
			[]any{"keyword_data.keyword_info.search_volume", ">=", c.minVolume},
		},
		"order_by": []string{"keyword_data.keyword_info.search_volume,desc"},
	}

	var parsed ideasResponse
	if err := c.post(ctx, "/v3/dataforseo_labs/google/keyword_ideas/live", task, &parsed); err != nil {
		return nil, err
	}

	var metrics []KeywordMetrics
	for _, t := range parsed.Tasks {
		for _, result := range t.Result {
			for _, item := range result.Items {
				info := item.KeywordData.KeywordInfo
				metrics = append(metrics, KeywordMetrics{
					Keyword:     item.KeywordData.Keyword,
					Volume:      info.SearchVolume,
					CPC:         info.CPC,
					Competition: info.Competition,
				})
			}
		}
	}
	if len(metrics) == 0 {
		return nil, ErrNoResults
	}

	c.logger.Debug("keyword ideas fetched", "seed", seed, "count", len(metrics))
	return metrics, nil
}

// TopCompetitors returns up to five organic results for the keyword.
func (c *Client) TopCompetitors(ctx context.Context, keyword, locale string) ([]Competitor, error) {
	task := map[string]any{
		"keyword":       keyword,
		"location_code": locationCode(locale),
		"language_code": languageCode(locale),
		"depth":         serpDepth,
	}

	var parsed serpResponse
	if err := c.post(ctx, "/v3/serp/google/organic/live/advanced", task, &parsed); err != nil {
		return nil, err
	}

	var competitors []Competitor
	for _, t := range parsed.Tasks {
		for _, result := range t.Result {
			for _, item := range result.Items {
				if item.Type != "organic" {
					continue
				}
				competitors = append(competitors, Competitor{
					Domain: item.Domain,
					Title:  item.Title,
					URL:    item.URL,
				})
				if len(competitors) == topCompetitors {
					return competitors, nil
				}
			}
		}
	}
	if len(competitors) == 0 {
		return nil, ErrNoResults
	}
	return competitors, nil
}

// post sends a single-task payload, the array-of-one shape the v3 API
// expects, and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, task map[string]any, out any) error {
	payload, err := json.Marshal([]any{task})
	if err != nil {
		return fmt.Errorf("dataforseo: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("dataforseo: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.login, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("dataforseo: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("dataforseo: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("dataforseo: decode response: %w", err)
	}
	return nil
}

// locationCode maps a locale to the API's location code. Only the
// US market is configured; other locales fall back to it.
func locationCode(string) int {
	return defaultLocationCode
}

// languageCode extracts the language part of a locale such as "en-US".
func languageCode(locale string) string {
	lang, _, found := strings.Cut(locale, "-")
	if !found || lang == "" {
		lang = locale
	}
	if lang == "" {
		return defaultLanguage
	}
	return strings.ToLower(lang)
}

type ideasResponse struct {
	Tasks []struct {
		Result []struct {
			Items []struct {
				KeywordData struct {
					Keyword     string `json:"keyword"`
					KeywordInfo struct {
						SearchVolume int     `json:"search_volume"`
						CPC          float64 `json:"cpc"`
						Competition  float64 `json:"competition"`
					} `json:"keyword_info"`
				} `json:"keyword_data"`
			} `json:"items"`
		} `json:"result"`
	} `json:"tasks"`
}

type serpResponse struct {
	Tasks []struct {
		Result []struct {
			Items []struct {
				Type   string `json:"type"`
				Domain string `json:"domain"`
				Title  string `json:"title"`
				URL    string `json:"url"`
			} `json:"items"`
		} `json:"result"`
	} `json:"tasks"`
}
