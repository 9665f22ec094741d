package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/GeorgiosLymperis/quotefancy/internal/config"
	"github.com/GeorgiosLymperis/quotefancy/internal/scraper"
	"github.com/GeorgiosLymperis/quotefancy/internal/store"
)

type server struct {
	cfg config.Config
}

func newServer(cfg config.Config) *server {
	return &server{cfg: cfg}
}

type sourceJSON struct {
	Source  string `json:"source"`
	Pages   int    `json:"pages"`
	Records int    `json:"records"`
	Dropped int    `json:"dropped"`
	Stop    string `json:"stop"`
}

type scrapeResponse struct {
	Run         string                `json:"run"`
	Records     []scraper.QuoteRecord `json:"records"`
	Authors     []string              `json:"authors"`
	Sources     []sourceJSON          `json:"sources"`
	Interrupted bool                  `json:"interrupted"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint.
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// /scrape runs a scrape and answers with the CSV export as an attachment.
	mux.HandleFunc("POST /scrape", s.handleScrapeCSV)

	// /scrape.json runs a scrape and answers with records, authors and per-source stats.
	mux.HandleFunc("POST /scrape.json", s.handleScrapeJSON)

	// Root serves a tiny interactive HTML UI.
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(makeHTML()))
	})
	return mux
}

// scrape validates the form and runs the controller. It writes the error
// response itself and returns nil when the request cannot proceed.
func (s *server) scrape(w http.ResponseWriter, r *http.Request, needFilename bool) *scraper.Run {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return nil
	}
	urls := scraper.SplitURLList(r.FormValue("urls"))
	if len(urls) == 0 || (needFilename && strings.TrimSpace(r.FormValue("filename")) == "") {
		http.Error(w, "Please provide both URLs and filename.", http.StatusBadRequest)
		return nil
	}

	controller, err := s.cfg.NewController()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil
	}
	run, err := controller.Run(r.Context(), scraper.SourceIDs(urls))
	if err != nil {
		status := http.StatusInternalServerError
		if scraper.IsValidationError(err) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return nil
	}

	if s.cfg.Database != "" {
		if err := archive(s.cfg.Database, run); err != nil {
			slog.Error("Failed to archive run", "run", run.ID, "error", err)
		}
	}
	return run
}

func (s *server) handleScrapeCSV(w http.ResponseWriter, r *http.Request) {
	run := s.scrape(w, r, true)
	if run == nil {
		return
	}
	if len(run.Records) == 0 {
		http.Error(w, "No quotes scraped.", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := scraper.WriteCSV(&buf, run.Records); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	name := filepath.Base(strings.TrimSpace(r.FormValue("filename")))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	// Header values are read as Latin-1 by browsers; the UI decodes this.
	w.Header().Set("X-Distinct-Authors", url.PathEscape(scraper.JoinAuthors(run.Authors())))
	w.Write(buf.Bytes())
}

func (s *server) handleScrapeJSON(w http.ResponseWriter, r *http.Request) {
	run := s.scrape(w, r, false)
	if run == nil {
		return
	}

	resp := scrapeResponse{
		Run:         run.ID.String(),
		Records:     run.Records,
		Authors:     run.Authors(),
		Interrupted: run.Interrupted,
	}
	if resp.Records == nil {
		resp.Records = []scraper.QuoteRecord{}
	}
	for _, src := range run.Sources {
		resp.Sources = append(resp.Sources, sourceJSON{
			Source:  src.SourceID,
			Pages:   src.Pages,
			Records: src.Records,
			Dropped: src.Dropped,
			Stop:    src.Stop.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func archive(path string, run *scraper.Run) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveRun(context.Background(), run)
}

// makeHTML returns the embedded single-file UI for manual use.
func makeHTML() string {
	return `<!doctype html>
<html>
<head>
<meta charset="utf-8" />
<title>QuoteFancy Scraper</title>
<meta name="viewport" content="width=device-width, initial-scale=1" />
<style>
  body { font-family: system-ui, sans-serif; max-width: 720px; margin: 40px auto; padding: 0 16px; }
  textarea { width: 100%; min-height: 110px; font-size: 15px; padding: 12px; }
  input[type=text] { width: 100%; font-size: 15px; padding: 8px; }
  button { padding: 10px 14px; margin-top: 8px; font-size: 15px; cursor: pointer; }
  .label { font-weight: 600; display: block; margin-top: 12px; }
  #authors { white-space: pre-wrap; }
</style>
</head>
<body>
<h1>QuoteFancy Scraper</h1>

<label class="label" for="urls">QuoteFancy URLs (comma separated)</label>
<textarea id="urls" placeholder="https://quotefancy.com/motivational-quotes"></textarea>
<label class="label" for="filename">Filename to save as (.csv)</label>
<input type="text" id="filename" value="quotes.csv" />
<button id="btn">Start Scraping</button>
<span id="status"></span>

<h3>Distinct Authors Found</h3>
<div id="authors"></div>

<script>
const btn = document.getElementById('btn');
const statusEl = document.getElementById('status');
const authorsEl = document.getElementById('authors');

btn.addEventListener('click', async () => {
  const urls = document.getElementById('urls').value.trim();
  const filename = document.getElementById('filename').value.trim();
  if (!urls || !filename) { alert('Please provide both URLs and filename.'); return; }
  statusEl.textContent = 'scraping...';
  authorsEl.textContent = '';
  try {
    const body = new URLSearchParams({ urls, filename });
    const res = await fetch('/scrape', { method: 'POST', body });
    if (!res.ok) throw new Error(await res.text());
    authorsEl.textContent = decodeURIComponent(res.headers.get('X-Distinct-Authors') || '');
    const blob = await res.blob();
    const a = document.createElement('a');
    a.href = URL.createObjectURL(blob);
    a.download = filename;
    a.click();
    statusEl.textContent = 'done';
  } catch (e) {
    statusEl.textContent = '';
    alert('Error: ' + e.message);
  }
});
</script>
</body>
</html>`
}
