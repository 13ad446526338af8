package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dealflow/internal/logging"
)

// RegistryClient searches a corporate-registry aggregator. The registry
// nests each company under a wrapper object and reports total pages up
// front rather than a has-more flag.
type RegistryClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     logging.Logger
	delay      time.Duration
}

// NewRegistryClient builds a registry search client. The token is
// optional; anonymous access is rate limited harder upstream.
func NewRegistryClient(baseURL, apiToken string, delay time.Duration, logger logging.Logger) *RegistryClient {
	return &RegistryClient{
		baseURL:    baseURL,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.OrNop(logger),
		delay:      delay,
	}
}

func (c *RegistryClient) Name() string { return "registry" }

// Search walks result pages up to the reported page count.
func (c *RegistryClient) Search(ctx context.Context, location, term string) ([]CompanyRecord, error) {
	var records []CompanyRecord
	totalPages := 1

	for page := 1; page <= totalPages && page <= maxPages; page++ {
		pageRecords, reportedPages, err := c.fetchPage(ctx, location, term, page)
		if err != nil {
			return nil, fmt.Errorf("registry search page %d: %w", page, err)
		}
		if reportedPages > totalPages {
			totalPages = reportedPages
		}
		records = append(records, pageRecords...)
		c.logger.Debug("registry page %d/%d: %d records", page, totalPages, len(pageRecords))

		if page < totalPages {
			if err := sleepCtx(ctx, c.delay); err != nil {
				return records, err
			}
		}
	}

	return records, nil
}

func (c *RegistryClient) fetchPage(ctx context.Context, location, term string, page int) ([]CompanyRecord, int, error) {
	query := url.Values{}
	query.Set("q", term)
	query.Set("jurisdiction", location)
	query.Set("page", strconv.Itoa(page))
	if c.apiToken != "" {
		query.Set("api_token", c.apiToken)
	}
	endpoint := c.baseURL + "/companies/search?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Results struct {
			Companies []struct {
				Company map[string]any `json:"company"`
			} `json:"companies"`
			TotalPages int `json:"total_pages"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}

	records := make([]CompanyRecord, 0, len(payload.Results.Companies))
	for _, wrapper := range payload.Results.Companies {
		if wrapper.Company == nil {
			continue
		}
		record := CompanyRecord(wrapper.Company)
		record["source"] = c.Name()
		records = append(records, record)
	}
	return records, payload.Results.TotalPages, nil
}
