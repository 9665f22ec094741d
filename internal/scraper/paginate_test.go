package scraper

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDelay() Options {
	opts := DefaultOptions()
	opts.InterPageDelay = 0
	return opts
}

func newTestController(t *testing.T, f Fetcher, opts Options) *Controller {
	t.Helper()
	c, err := NewController(f, opts)
	require.NoError(t, err)
	return c
}

func assertContiguousSerials(t *testing.T, records []QuoteRecord) {
	t.Helper()
	for i, r := range records {
		assert.Equal(t, i+1, r.Serial, "record %d", i)
	}
}

func TestRunScenarioMixedShapesThenEmpty(t *testing.T) {
	site := newFakeSite()
	site.set("/famous-quotes/page/1", string(readHTML(t, filepath.Join("testdata", "page_mixed.html"))))
	site.set("/famous-quotes/page/2", emptyListing)
	f := serveSite(t, site)

	run, err := newTestController(t, f, noDelay()).Run(context.Background(), []string{"famous-quotes"})
	require.NoError(t, err)

	require.Len(t, run.Records, 2)
	assertContiguousSerials(t, run.Records)
	assert.Equal(t, "Albert Einstein", run.Records[0].Author)
	assert.Equal(t, "Maya Angelou", run.Records[1].Author)
	assert.Equal(t, "", run.Records[1].Link)

	require.Len(t, run.Sources, 1)
	src := run.Sources[0]
	assert.Equal(t, 2, src.Pages)
	assert.Equal(t, StopExhausted, src.Stop)
	assert.Equal(t, 2, src.Records)
	assert.Equal(t, 0, site.count("/famous-quotes/page/3"), "no fetch after an empty page")
	assert.False(t, run.Interrupted)
	assert.NotEqual(t, [16]byte{}, [16]byte(run.ID))
}

func TestRunScenarioSecondSourceEmpty(t *testing.T) {
	site := newFakeSite()
	site.set("/a/page/1", listing(
		Fragment{Quote: "one", Link: "/1", Author: "Zeno"},
		Fragment{Quote: "two", Link: "/2", Author: "Aristotle"},
	))
	site.set("/a/page/2", listing(Fragment{Quote: "three", Link: "/3", Author: "Zeno"}))
	site.set("/a/page/3", emptyListing)
	site.set("/b/page/1", emptyListing)
	f := serveSite(t, site)

	run, err := newTestController(t, f, noDelay()).Run(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, run.Records, 3)
	assertContiguousSerials(t, run.Records)
	assert.Equal(t, []string{"one", "two", "three"}, []string{run.Records[0].Quote, run.Records[1].Quote, run.Records[2].Quote})
	assert.Equal(t, []string{"Aristotle", "Zeno"}, run.Authors())

	assert.Equal(t, 3, run.Sources[0].Records)
	assert.Equal(t, 0, run.Sources[1].Records)
	assert.Equal(t, StopExhausted, run.Sources[1].Stop)
	assert.Equal(t, 1, run.Sources[1].Pages)
	assert.Equal(t, 0, site.count("/b/page/2"))
}

func TestRunScenarioTimeoutMovesToNextSource(t *testing.T) {
	site := newFakeSite()
	site.block["/slow/page/1"] = true
	site.set("/fast/page/1", listing(Fragment{Quote: "made it", Author: "Someone"}))
	site.set("/fast/page/2", emptyListing)
	f := serveSite(t, site)

	run, err := newTestController(t, f, noDelay()).Run(context.Background(), []string{"slow", "fast"})
	require.NoError(t, err)

	assert.Equal(t, StopTransport, run.Sources[0].Stop)
	assert.Error(t, run.Sources[0].Cause)
	assert.Equal(t, 0, run.Sources[0].Records)
	assert.Equal(t, 1, run.Sources[0].Pages, "retries stay inside one page fetch")
	require.Len(t, run.Records, 1)
	assert.Equal(t, 1, run.Records[0].Serial)
	assert.Equal(t, "made it", run.Records[0].Quote)
	assert.False(t, run.Interrupted)
}

func TestRunTransportAndExhaustedAreDistinct(t *testing.T) {
	site := newFakeSite()
	site.set("/ok/page/1", listing(Fragment{Quote: "q", Author: "a"}))
	site.status["/ok/page/2"] = http.StatusServiceUnavailable
	site.set("/done/page/1", listing(Fragment{Quote: "q", Author: "a"}))
	site.set("/done/page/2", emptyListing)
	f := serveSite(t, site)

	run, err := newTestController(t, f, noDelay()).Run(context.Background(), []string{"ok", "done"})
	require.NoError(t, err)

	assert.Equal(t, StopTransport, run.Sources[0].Stop)
	assert.Equal(t, StopExhausted, run.Sources[1].Stop)
	assert.Nil(t, run.Sources[1].Cause)
	assert.Len(t, run.Records, 2)
	assert.Equal(t, 3, site.count("/ok/page/2"))
}

// endless always answers with one record per page.
type endless struct {
	mu    sync.Mutex
	calls map[string][]int
}

func (e *endless) Fetch(_ context.Context, sourceID string, page int) PageResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls == nil {
		e.calls = map[string][]int{}
	}
	e.calls[sourceID] = append(e.calls[sourceID], page)
	body := listing(Fragment{Quote: fmt.Sprintf("%s-%d", sourceID, page), Author: sourceID})
	return PageResult{Status: PageOK, Body: []byte(body)}
}

func TestRunHonorsPageCap(t *testing.T) {
	e := &endless{}
	opts := noDelay()
	opts.PageCap = 4

	run, err := newTestController(t, e, opts).Run(context.Background(), []string{"x", "y"})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, e.calls["x"])
	assert.Equal(t, []int{1, 2, 3, 4}, e.calls["y"])
	assert.Len(t, run.Records, 8)
	assertContiguousSerials(t, run.Records)
	assert.Equal(t, "y-1", run.Records[4].Quote, "serials continue across sources")
	for _, s := range run.Sources {
		assert.Equal(t, StopPageCap, s.Stop)
		assert.Equal(t, 4, s.Pages)
	}
}

func TestRunDefaultPageCap(t *testing.T) {
	e := &endless{}
	_, err := newTestController(t, e, noDelay()).Run(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, e.calls["x"], 10)
}

func TestRunInterPageDelay(t *testing.T) {
	e := &endless{}
	opts := Options{PageCap: 3, InterPageDelay: 40 * time.Millisecond, Workers: 1}

	start := time.Now()
	_, err := newTestController(t, e, opts).Run(context.Background(), []string{"x"})
	require.NoError(t, err)
	elapsed := time.Since(start)

	// two delays between three pages, none once the cap ends the source
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 120*time.Millisecond+80*time.Millisecond)
}

func TestRunDropsMalformedRecordsAndContinues(t *testing.T) {
	site := newFakeSite()
	site.set("/s/page/1", string(readHTML(t, filepath.Join("testdata", "page_secondary.html"))))
	site.set("/s/page/2", `<div class="q-wrapper"><p class="author-p"><a>only author</a></p></div>`)
	site.set("/s/page/3", listing(Fragment{Quote: "after", Author: "X"}))
	site.set("/s/page/4", emptyListing)
	f := serveSite(t, site)

	run, err := newTestController(t, f, noDelay()).Run(context.Background(), []string{"s"})
	require.NoError(t, err)

	assert.Len(t, run.Records, 4)
	assertContiguousSerials(t, run.Records)
	assert.Equal(t, 2, run.Sources[0].Dropped)
	assert.Equal(t, 4, run.Sources[0].Pages, "a page of only malformed containers is not the end")
	for _, r := range run.Records {
		assert.NotEmpty(t, r.Quote)
	}
	assert.Equal(t, AnonymousAuthor, run.Records[1].Author)
}

func TestRunWorkersPreserveOrder(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f"}
	opts := noDelay()
	opts.PageCap = 3

	seq, err := newTestController(t, &endless{}, opts).Run(context.Background(), ids)
	require.NoError(t, err)

	opts.Workers = 4
	par, err := newTestController(t, &endless{}, opts).Run(context.Background(), ids)
	require.NoError(t, err)

	if diff := cmp.Diff(seq.Records, par.Records); diff != "" {
		t.Errorf("records differ with workers (-seq +par):\n%s", diff)
	}
	if diff := cmp.Diff(seq.Sources, par.Sources, cmpopts.IgnoreUnexported(SourceResult{})); diff != "" {
		t.Errorf("sources differ with workers (-seq +par):\n%s", diff)
	}
	assertContiguousSerials(t, par.Records)
}

// cancelAfter cancels the run once n pages have been served.
type cancelAfter struct {
	n      int32
	served atomic.Int32
	cancel context.CancelFunc
	inner  Fetcher
}

func (c *cancelAfter) Fetch(ctx context.Context, sourceID string, page int) PageResult {
	res := c.inner.Fetch(ctx, sourceID, page)
	if c.served.Add(1) == c.n {
		c.cancel()
	}
	return res
}

func TestRunCancellationKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &cancelAfter{n: 2, cancel: cancel, inner: &endless{}}

	run, err := newTestController(t, f, noDelay()).Run(ctx, []string{"x", "y"})
	require.NoError(t, err)

	assert.True(t, run.Interrupted)
	require.Len(t, run.Records, 2)
	assertContiguousSerials(t, run.Records)
	assert.Equal(t, StopCanceled, run.Sources[0].Stop)
	assert.Equal(t, StopCanceled, run.Sources[1].Stop)
	assert.Equal(t, 0, run.Sources[1].Pages)
}

func TestRunCanceledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	opts := Options{PageCap: 10, InterPageDelay: time.Hour, Workers: 1}

	run, err := newTestController(t, &endless{}, opts).Run(ctx, []string{"x"})
	require.NoError(t, err)
	assert.True(t, run.Interrupted)
	assert.Len(t, run.Records, 1)
}

func TestRunRequiresSources(t *testing.T) {
	_, err := newTestController(t, &endless{}, DefaultOptions()).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSources)
	assert.True(t, IsValidationError(err))
}

func TestNewControllerValidatesOptions(t *testing.T) {
	for _, opts := range []Options{
		{PageCap: 0, Workers: 1},
		{PageCap: 1, Workers: 0},
		{PageCap: 1, Workers: 1, InterPageDelay: -time.Second},
	} {
		_, err := NewController(&endless{}, opts)
		assert.Error(t, err, "%+v", opts)
	}
	_, err := NewController(nil, DefaultOptions())
	assert.Error(t, err)
}

func TestStopReasonString(t *testing.T) {
	assert.Equal(t, "transport", StopTransport.String())
	assert.Equal(t, "exhausted", StopExhausted.String())
	assert.Equal(t, "page_cap", StopPageCap.String())
	assert.Equal(t, "canceled", StopCanceled.String())
	assert.Equal(t, "StopReason(0)", StopReason(0).String())
}
