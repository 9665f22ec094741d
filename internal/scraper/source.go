package scraper

import (
	"net/url"
	"strings"
)

// SourceID returns the listing identifier of a quotefancy URL, i.e. the
// first segment of its path. "https://quotefancy.com/famous-quotes/page/3"
// yields "famous-quotes". An empty path (or an unparsable URL) yields "".
func SourceID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	return strings.Split(path, "/")[0]
}

// SourceIDs maps every URL to its identifier, keeping input order.
func SourceIDs(urls []string) []string {
	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		ids = append(ids, SourceID(u))
	}
	return ids
}

// SplitURLList splits a comma separated list of URLs, dropping blanks.
func SplitURLList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
