package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// StopReason says why pagination ended for one source. All reasons end the
// source the same way; they are kept apart for diagnostics.
type StopReason int

const (
	// StopTransport: a page could not be fetched (timeout, connection error,
	// non-2xx after retries). A transient outage truncates the source silently.
	StopTransport StopReason = iota + 1
	// StopExhausted: a page was fetched but held no record containers.
	StopExhausted
	// StopPageCap: the configured page cap was reached.
	StopPageCap
	// StopCanceled: the run's context was canceled.
	StopCanceled
)

func (r StopReason) String() string {
	switch r {
	case StopTransport:
		return "transport"
	case StopExhausted:
		return "exhausted"
	case StopPageCap:
		return "page_cap"
	case StopCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Options configures a Controller.
type Options struct {
	// PageCap is the maximum number of pages fetched per source.
	PageCap int
	// InterPageDelay is waited after every successful page that is followed
	// by another request.
	InterPageDelay time.Duration
	// Workers > 1 paginates that many sources at once. Output order and
	// serial numbers do not depend on it.
	Workers int
}

// DefaultOptions returns a page cap of 10, a 1s delay and a single worker.
func DefaultOptions() Options {
	return Options{
		PageCap:        10,
		InterPageDelay: time.Second,
		Workers:        1,
	}
}

// Validate rejects malformed options.
func (o Options) Validate() error {
	if o.PageCap < 1 {
		return fmt.Errorf("page cap must be positive, got %d", o.PageCap)
	}
	if o.InterPageDelay < 0 {
		return fmt.Errorf("inter-page delay must not be negative, got %s", o.InterPageDelay)
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	return nil
}

// Fetcher fetches one listing page. PageFetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string, page int) PageResult
}

// SourceResult summarizes the pagination of one source identifier.
type SourceResult struct {
	SourceID string
	// Pages is the number of fetches issued.
	Pages   int
	Records int
	Dropped int
	Stop    StopReason
	// Cause is the fetch failure for StopTransport, or the parse failure
	// for StopExhausted when the document could not be read.
	Cause error

	fragments []Fragment
}

// Run is one end-to-end extraction across all requested sources. Records
// are in source submission order, then page order, then page position.
type Run struct {
	ID          uuid.UUID
	StartedAt   time.Time
	FinishedAt  time.Time
	Records     []QuoteRecord
	Sources     []SourceResult
	Interrupted bool
}

// Authors returns the distinct, sorted authors of the run.
func (r *Run) Authors() []string {
	return DistinctAuthors(r.Records)
}

// Controller drives a Fetcher and the page parser across a bounded page range.
type Controller struct {
	fetcher Fetcher
	parse   func([]byte) (ParsedPage, error)
	opts    Options
}

// NewController returns a Controller, or an error when opts are malformed.
func NewController(f Fetcher, opts Options) (*Controller, error) {
	if f == nil {
		return nil, errors.New("nil fetcher")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Controller{fetcher: f, parse: ParsePage, opts: opts}, nil
}

// Run paginates every source and returns the accumulated records.
//
// Parameters:
//   - ctx: cancels the run; checked before every fetch and during the inter-page delay.
//   - sourceIDs: listing identifiers such as "famous-quotes", paginated in this order.
//
// Behavior:
//   - Each source is fetched from page 1 until a page is unavailable, a page
//     holds no record containers, or PageCap pages were fetched.
//   - With Workers > 1 sources run concurrently; records and serials are
//     still ordered by source, then page, then position on the page.
//   - Serials start at 1 and are contiguous across the whole run.
//
// Returns ErrNoSources for an empty sourceIDs. Cancellation is not an
// error: the records gathered so far come back with Interrupted set.
func (c *Controller) Run(ctx context.Context, sourceIDs []string) (*Run, error) {
	if len(sourceIDs) == 0 {
		return nil, ErrNoSources
	}

	run := &Run{ID: uuid.New(), StartedAt: time.Now().UTC()}
	results := make([]SourceResult, len(sourceIDs))

	if c.opts.Workers <= 1 || len(sourceIDs) == 1 {
		for i, id := range sourceIDs {
			results[i] = c.paginate(ctx, id)
		}
	} else {
		c.paginateConcurrent(ctx, sourceIDs, results)
	}

	// Single writer: serials follow submission order whatever the worker count.
	serial := 0
	for i := range results {
		for _, f := range results[i].fragments {
			serial++
			run.Records = append(run.Records, f.record(serial))
		}
		results[i].Records = len(results[i].fragments)
		results[i].fragments = nil
		if results[i].Stop == StopCanceled {
			run.Interrupted = true
		}
	}
	run.Sources = results
	run.FinishedAt = time.Now().UTC()

	slog.Info("run finished", "run", run.ID, "sources", len(sourceIDs), "records", len(run.Records), "interrupted", run.Interrupted)
	return run, nil
}

func (c *Controller) paginateConcurrent(ctx context.Context, sourceIDs []string, results []SourceResult) {
	sem := semaphore.NewWeighted(int64(c.opts.Workers))
	g, gctx := errgroup.WithContext(ctx)

	for i, id := range sourceIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(sourceIDs); j++ {
				results[j] = SourceResult{SourceID: sourceIDs[j], Stop: StopCanceled}
			}
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = c.paginate(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
}

// paginate runs the per-source state machine:
//
//	Requesting(n) --unavailable--> Stopped(transport)
//	Requesting(n) --content------> Parsing
//	Parsing       --no containers-> Stopped(exhausted)
//	Parsing       --records------> Continuing --delay--> Requesting(n+1)
//	                               or Stopped(page_cap) when n+1 > cap
func (c *Controller) paginate(ctx context.Context, sourceID string) SourceResult {
	res := SourceResult{SourceID: sourceID}
	log := slog.With("source", sourceID)

	defer func() {
		log.Info("source finished", "pages", res.Pages, "records", len(res.fragments), "dropped", res.Dropped, "stop", res.Stop.String())
	}()

	for page := 1; ; page++ {
		if ctx.Err() != nil {
			res.Stop = StopCanceled
			return res
		}

		pr := c.fetcher.Fetch(ctx, sourceID, page)
		res.Pages++
		if pr.Status == PageUnavailable {
			if ctx.Err() != nil {
				res.Stop = StopCanceled
				return res
			}
			log.Debug("page unavailable", "page", page, "url", pr.URL, "error", pr.Cause)
			res.Stop = StopTransport
			res.Cause = pr.Cause
			return res
		}

		parsed, err := c.parse(pr.Body)
		if err != nil {
			res.Stop = StopExhausted
			res.Cause = fmt.Errorf("parse %s: %w", pr.URL, err)
			return res
		}
		if parsed.Empty() {
			res.Stop = StopExhausted
			return res
		}
		res.fragments = append(res.fragments, parsed.Fragments...)
		res.Dropped += parsed.Dropped
		log.Debug("page scraped", "page", page, "records", len(parsed.Fragments), "dropped", parsed.Dropped, "anonymous", parsed.Anonymous)

		if page+1 > c.opts.PageCap {
			res.Stop = StopPageCap
			return res
		}
		if err := sleepCtx(ctx, c.opts.InterPageDelay); err != nil {
			res.Stop = StopCanceled
			return res
		}
	}
}
