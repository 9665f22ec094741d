package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/GeorgiosLymperis/quotefancy/internal/config"
	"github.com/GeorgiosLymperis/quotefancy/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `<html><body>
<div class="q-wrapper"><div class="quote-a"><a href="/quote/1">Stay hungry, stay foolish.</a></div><div class="author-p bylines">by Steve Jobs</div></div>
<div class="q-wrapper"><a class="quote-a" href="/quote/2">Whatever you are, be a good one.</a><p class="author-p"><a href="/abraham-lincoln-quotes">Abraham Lincoln</a></p></div>
<div class="q-wrapper"><div class="quote-a"><a href="/quote/3">I think, therefore I am.</a></div><div class="author-p bylines">by René Descartes</div></div>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	site := http.NewServeMux()
	site.HandleFunc("/life-quotes/page/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listing))
	})
	site.HandleFunc("/life-quotes/page/2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body></body></html>"))
	})
	upstream := httptest.NewServer(site)
	t.Cleanup(upstream.Close)

	t.Chdir(t.TempDir())
	t.Setenv("QUOTEFANCY_BASE_URL", upstream.URL)
	t.Setenv("QUOTEFANCY_INTER_PAGE_DELAY", "0s")
	t.Setenv("QUOTEFANCY_RETRY_WAIT", "1ms")
	cfg, err := config.Load("")
	require.NoError(t, err)

	gateway := httptest.NewServer(newServer(cfg).routes())
	t.Cleanup(gateway.Close)
	return gateway
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIndexServesForm(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestScrapeReturnsCSVAttachment(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.PostForm(srv.URL+"/scrape", url.Values{
		"urls":     {"https://quotefancy.com/life-quotes"},
		"filename": {"life.csv"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename=life.csv`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "Abraham%20Lincoln%2C%20Ren%C3%A9%20Descartes%2C%20Steve%20Jobs", resp.Header.Get("X-Distinct-Authors"))
	authors, err := url.PathUnescape(resp.Header.Get("X-Distinct-Authors"))
	require.NoError(t, err)
	assert.Equal(t, "Abraham Lincoln, René Descartes, Steve Jobs", authors)

	records, err := scraper.ReadCSV(resp.Body)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "/quote/2", records[1].Link)
}

func TestScrapeRequiresURLsAndFilename(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		form url.Values
	}{
		{"no urls", url.Values{"filename": {"a.csv"}}},
		{"blank urls", url.Values{"urls": {" , "}, "filename": {"a.csv"}}},
		{"no filename", url.Values{"urls": {"https://quotefancy.com/life-quotes"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.PostForm(srv.URL+"/scrape", tt.form)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestScrapeWithoutQuotes(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.PostForm(srv.URL+"/scrape", url.Values{
		"urls":     {"https://quotefancy.com/missing-quotes"},
		"filename": {"none.csv"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScrapeJSON(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/scrape.json", "application/x-www-form-urlencoded",
		strings.NewReader("urls=https://quotefancy.com/life-quotes,https://quotefancy.com/missing-quotes"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body scrapeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Records, 3)
	assert.Equal(t, []string{"Abraham Lincoln", "René Descartes", "Steve Jobs"}, body.Authors)
	require.Len(t, body.Sources, 2)
	assert.Equal(t, "exhausted", body.Sources[0].Stop)
	assert.Equal(t, "transport", body.Sources[1].Stop)
	assert.False(t, body.Interrupted)
}

func TestEnv(t *testing.T) {
	t.Setenv("GATEWAY_TEST_KEY", "")
	assert.Equal(t, "fallback", env("GATEWAY_TEST_KEY", "fallback"))
	t.Setenv("GATEWAY_TEST_KEY", "set")
	assert.Equal(t, "set", env("GATEWAY_TEST_KEY", "fallback"))
}
