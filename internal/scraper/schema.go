package scraper

// AnonymousAuthor is recorded when a container carries no author markup.
const AnonymousAuthor = "Anonymous"

// QuoteRecord is one exported row. Serial is assigned by the Controller and
// is contiguous from 1 across a whole Run.
type QuoteRecord struct {
	Serial int    `json:"serial"`
	Quote  string `json:"quote"`
	Link   string `json:"link"`
	Author string `json:"author"`
}

// Fragment is a parsed container before a serial number is assigned.
type Fragment struct {
	Quote  string
	Link   string
	Author string
}

func (f Fragment) record(serial int) QuoteRecord {
	return QuoteRecord{
		Serial: serial,
		Quote:  f.Quote,
		Link:   f.Link,
		Author: f.Author,
	}
}
