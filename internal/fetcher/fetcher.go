// Package fetcher is the outbound HTTP layer of the intel pipeline: company
// homepages, crawled subpages, disclosure PDFs. Per-host rate limiting and
// retry live here so callers never think about politeness.
package fetcher

import (
	"context"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

// PageFetcher fetches web pages and PDF documents.
type PageFetcher interface {
	// FetchHomepage fetches the company homepage with transparent retries.
	// Total failure returns a *FailureReason error carrying a classified,
	// user-facing explanation.
	FetchHomepage(ctx context.Context, url string) (*model.FetchedPage, error)
	// FetchPage fetches a crawled subpage. Failures return a page with
	// OK=false rather than an error; subpages are best-effort.
	FetchPage(ctx context.Context, url string) *model.FetchedPage
	// FetchPDF downloads a PDF document, capped at a sane size.
	FetchPDF(ctx context.Context, url string) ([]byte, error)
}
