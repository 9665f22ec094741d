package scraper

import (
	"context"
	"fmt"
	"strings"
)

// DefaultBaseURL is the site every source identifier is resolved against.
const DefaultBaseURL = "https://quotefancy.com"

// PageStatus tags a PageResult.
type PageStatus int

const (
	// PageOK means the page was fetched and Body holds its markup.
	PageOK PageStatus = iota
	// PageUnavailable means the page could not be fetched; Cause says why.
	PageUnavailable
)

func (s PageStatus) String() string {
	switch s {
	case PageOK:
		return "ok"
	case PageUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("PageStatus(%d)", int(s))
	}
}

// PageResult is the outcome of one page fetch. Unavailability is not an error
// for the caller; it is how a paginated listing ends.
type PageResult struct {
	Status PageStatus
	URL    string
	Body   []byte
	Cause  error
}

// Getter is the part of Client the fetcher depends on.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// PageFetcher resolves (source, page) pairs to listing URLs and fetches them.
type PageFetcher struct {
	Client  Getter
	BaseURL string
}

// NewPageFetcher returns a fetcher for the quotefancy site.
func NewPageFetcher(c Getter) *PageFetcher {
	return &PageFetcher{
		Client:  c,
		BaseURL: DefaultBaseURL,
	}
}

// PageURL returns {base}/{sourceID}/page/{page}.
func (f *PageFetcher) PageURL(sourceID string, page int) string {
	return fmt.Sprintf("%s/%s/page/%d", strings.TrimRight(f.BaseURL, "/"), sourceID, page)
}

// Fetch retrieves one listing page. Every failure, including timeouts and
// non-2xx responses left after the client's retries, comes back as
// PageUnavailable.
func (f *PageFetcher) Fetch(ctx context.Context, sourceID string, page int) PageResult {
	url := f.PageURL(sourceID, page)
	if page < 1 {
		return PageResult{Status: PageUnavailable, URL: url, Cause: fmt.Errorf("page number %d out of range", page)}
	}
	body, err := f.Client.Get(ctx, url)
	if err != nil {
		return PageResult{Status: PageUnavailable, URL: url, Cause: err}
	}
	return PageResult{Status: PageOK, URL: url, Body: body}
}
