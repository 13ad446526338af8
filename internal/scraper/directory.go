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

// DirectoryClient searches a consumer business directory that serves
// offset-paginated listing pages.
type DirectoryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
	delay      time.Duration
}

// NewDirectoryClient builds a directory search client.
func NewDirectoryClient(baseURL string, delay time.Duration, logger logging.Logger) *DirectoryClient {
	return &DirectoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.OrNop(logger),
		delay:      delay,
	}
}

func (c *DirectoryClient) Name() string { return "directory" }

// Search walks listing pages until the source reports no more results.
func (c *DirectoryClient) Search(ctx context.Context, location, term string) ([]CompanyRecord, error) {
	var records []CompanyRecord

	for page := 1; page <= maxPages; page++ {
		pageRecords, hasMore, err := c.fetchPage(ctx, location, term, page)
		if err != nil {
			return nil, fmt.Errorf("directory search page %d: %w", page, err)
		}
		records = append(records, pageRecords...)
		c.logger.Debug("directory page %d: %d records, has_more=%t", page, len(pageRecords), hasMore)

		if !hasMore {
			break
		}
		if err := sleepCtx(ctx, c.delay); err != nil {
			return records, err
		}
	}

	return records, nil
}

func (c *DirectoryClient) fetchPage(ctx context.Context, location, term string, page int) ([]CompanyRecord, bool, error) {
	query := url.Values{}
	query.Set("location", location)
	query.Set("term", term)
	query.Set("page", strconv.Itoa(page))
	endpoint := c.baseURL + "/search?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Results []map[string]any `json:"results"`
		HasMore bool             `json:"has_more"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}

	records := make([]CompanyRecord, 0, len(payload.Results))
	for _, result := range payload.Results {
		record := CompanyRecord(result)
		record["source"] = c.Name()
		records = append(records, record)
	}
	return records, payload.HasMore, nil
}
