package scraper

import (
	"context"
	"time"
)

// CompanyRecord is an unstructured company row as a source returns it.
// The orchestration layer treats records as opaque payloads; field names
// are source-specific and never inspected here beyond identity mapping.
type CompanyRecord map[string]any

// Source is a business-directory search client.
type Source interface {
	// Name identifies the source in logs and stored records.
	Name() string

	// Search returns raw company records for a location and term,
	// following pagination until the source is exhausted or the page
	// cap is reached.
	Search(ctx context.Context, location, term string) ([]CompanyRecord, error)
}

// maxPages bounds pagination per search. Both upstream directories stop
// serving useful results well before this.
const maxPages = 10

// sleepCtx waits for the advisory inter-page delay unless the context
// ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
