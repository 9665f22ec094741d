package main

import (
	"io"

	"github.com/GeorgiosLymperis/quotefancy/internal/scraper"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const previewQuoteWidth = 80

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func renderRecords(w io.Writer, records []scraper.QuoteRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{scraper.Header[0], scraper.Header[1], scraper.Header[2], scraper.Header[3]})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: previewQuoteWidth, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, r := range records {
		t.AppendRow(table.Row{r.Serial, r.Quote, r.Link, r.Author})
	}
	t.Render()
}

func renderSources(w io.Writer, sources []scraper.SourceResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "Pages", "Quotes", "Dropped", "Stopped"})
	for _, s := range sources {
		t.AppendRow(table.Row{s.SourceID, s.Pages, s.Records, s.Dropped, s.Stop.String()})
	}
	t.Render()
}
