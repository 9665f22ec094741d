package scraper

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Header is the fixed header row of the tabular export.
var Header = []string{"Serial No", "Quote", "Link", "Author"}

// WriteCSV writes the header and one row per record, in the given order.
func WriteCSV(w io.Writer, records []QuoteRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{strconv.Itoa(r.Serial), r.Quote, r.Link, r.Author}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the CSV export to path, creating parent directories.
func WriteCSVFile(path string, records []QuoteRecord) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteCSV(w, records)
	})
}

// ReadCSV parses a CSV export back into records.
//
// The first row must equal Header exactly and every row must carry four
// fields with an integer serial. Rows are returned in file order; nothing
// is re-sorted or renumbered, so WriteCSV followed by ReadCSV yields the
// same records.
func ReadCSV(r io.Reader) ([]QuoteRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %q", header)
	}

	var out []QuoteRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		serial, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("invalid serial %q: %w", row[0], err)
		}
		out = append(out, QuoteRecord{Serial: serial, Quote: row[1], Link: row[2], Author: row[3]})
	}
	return out, nil
}

// WriteJSONL writes one JSON object per record.
func WriteJSONL(path string, records []QuoteRecord) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, record := range records {
			if err := enc.Encode(record); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	if strings.TrimSpace(path) == "" {
		return ErrNoOutput
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// DistinctAuthors returns every author once, sorted byte-wise ascending.
func DistinctAuthors(records []QuoteRecord) []string {
	seen := make(map[string]struct{}, len(records))
	authors := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.Author]; ok {
			continue
		}
		seen[r.Author] = struct{}{}
		authors = append(authors, r.Author)
	}
	sort.Strings(authors)
	return authors
}

// JoinAuthors renders an author list as a single ", " separated line.
func JoinAuthors(authors []string) string {
	return strings.Join(authors, ", ")
}
