// Package extract turns the markup Gmail serves on its legacy surfaces into
// the typed model. The Atom feed and the print view of a thread are both
// parsed with an HTML5 parser and queried with CSS selectors. Nothing in this
// package performs I/O.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	// ErrMalformedFeedEntry is returned when a feed entry lacks its link,
	// modification time or author.
	ErrMalformedFeedEntry = errors.New("malformed feed entry")

	// ErrMalformedFeedHeader is returned when the feed has no title or
	// modification time.
	ErrMalformedFeedHeader = errors.New("malformed feed header")

	// ErrDateParse is returned when a thread timestamp does not match the
	// print-view format.
	ErrDateParse = errors.New("unparseable date")

	// ErrThreadRef is returned when a thread url carries no thread id.
	ErrThreadRef = errors.New("url does not reference a thread")
)

func parseDocument(text string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parsing markup: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// innerHTML serializes the children of the first node in sel.
func innerHTML(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var b strings.Builder
	for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return b.String()
		}
	}
	return b.String()
}

// decodeEntities resolves character references such as &lt; and &#34;.
func decodeEntities(s string) string {
	return html.UnescapeString(s)
}
