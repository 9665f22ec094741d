package scraper

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// quotefancy listing markup. The site serves two shapes for the quote body
// and two for the author, sometimes on the same page.
const (
	qfContainerSel     = "div.q-wrapper"
	qfTextPrimarySel   = "div.quote-a"
	qfTextSecondarySel = "a.quote-a"
	qfBylineSel        = "div.author-p.bylines"
	qfAuthorParaSel    = "p.author-p"
)

// shape names which markup variant a field was read from.
type shape int

const (
	shapeAbsent shape = iota
	shapePrimary
	shapeSecondary
)

// ParsedPage is what one listing page yielded. Containers counts every
// record container found; Dropped counts those without any quote text.
// Anonymous counts kept fragments that matched no author markup.
// A page with zero Containers marks the end of the listing.
type ParsedPage struct {
	Fragments  []Fragment
	Containers int
	Dropped    int
	Anonymous  int
}

// Empty reports whether the page had no record containers at all.
func (p ParsedPage) Empty() bool {
	return p.Containers == 0
}

// ParsePage extracts record fragments from one quotefancy listing page.
//
// Parameters:
//   - body: raw HTML of a listing page, e.g. https://quotefancy.com/famous-quotes/page/2
//
// Returns:
//   - ParsedPage: fragments in document order plus per-page counters
//   - error: only when the document cannot be read at all
//
// Fields are matched per container:
//   - quote text: div.quote-a, then a.quote-a; containers with neither are dropped
//   - link: the href from the shape the text came from. Primary text falls
//     back to a.quote-a when div.quote-a holds no anchor; otherwise ""
//   - author: the "by ..." byline, then the anchor inside p.author-p, else "Anonymous"
//
// Example:
//
//	page, err := ParsePage(body)
//	if err != nil {
//	    return err
//	}
//	if page.Empty() {
//	    // past the last page
//	}
func ParsePage(body []byte) (ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ParsedPage{}, err
	}

	var page ParsedPage
	doc.Find(qfContainerSel).Each(func(_ int, c *goquery.Selection) {
		page.Containers++
		frag, authorShape, ok := parseContainer(c)
		if !ok {
			page.Dropped++
			return
		}
		if authorShape == shapeAbsent {
			page.Anonymous++
		}
		page.Fragments = append(page.Fragments, frag)
	})
	return page, nil
}

func parseContainer(c *goquery.Selection) (Fragment, shape, bool) {
	textShape, text := matchText(c)
	if textShape == shapeAbsent {
		return Fragment{}, shapeAbsent, false
	}
	link := matchLink(c, textShape)
	authorShape, author := matchAuthor(c)
	return Fragment{Quote: text, Link: link, Author: author}, authorShape, true
}

func matchText(c *goquery.Selection) (shape, string) {
	if t := selText(c.Find(qfTextPrimarySel).First()); t != "" {
		return shapePrimary, t
	}
	if t := selText(c.Find(qfTextSecondarySel).First()); t != "" {
		return shapeSecondary, t
	}
	return shapeAbsent, ""
}

// matchLink reads the href from the node shape the text was taken from.
// An anchor without href still wins and yields "".
func matchLink(c *goquery.Selection, textShape shape) string {
	primary := c.Find(qfTextPrimarySel).First().Find("a").First()
	secondary := c.Find(qfTextSecondarySel).First()

	switch textShape {
	case shapePrimary:
		if primary.Length() > 0 {
			return hrefOf(primary)
		}
		if secondary.Length() > 0 {
			return hrefOf(secondary)
		}
	case shapeSecondary:
		if secondary.Length() > 0 {
			return hrefOf(secondary)
		}
	}
	return ""
}

func hrefOf(a *goquery.Selection) string {
	return strings.TrimSpace(a.AttrOr("href", ""))
}

func matchAuthor(c *goquery.Selection) (shape, string) {
	if b := c.Find(qfBylineSel).First(); b.Length() > 0 {
		name := strings.TrimPrefix(selText(b), "by ")
		if name != "" && name != "by" {
			return shapePrimary, name
		}
	}
	if name := selText(c.Find(qfAuthorParaSel).Find("a").First()); name != "" {
		return shapeSecondary, name
	}
	return shapeAbsent, AnonymousAuthor
}

func selText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return normalizeSpaces(s.Text())
}

// normalizeSpaces collapses all runs of whitespace into single spaces.
// Useful for cleaning up inconsistent HTML spacing in quotes.
func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
