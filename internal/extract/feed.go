package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nhle/gmail-notifier/internal/model"
)

// ExtractFeed parses the inbox Atom feed. Entries are returned in document
// order.
func ExtractFeed(text string) (*model.FeedInfo, error) {
	doc, err := parseDocument(text)
	if err != nil {
		return nil, err
	}

	entries := make([]model.FeedEntry, 0)
	var entryErr error
	doc.Find("entry").EachWithBreak(func(i int, entry *goquery.Selection) bool {
		fe, err := extractEntry(entry)
		if err != nil {
			entryErr = fmt.Errorf("entry %d: %w", i, err)
			return false
		}
		entries = append(entries, fe)
		return true
	})
	if entryErr != nil {
		return nil, entryErr
	}

	title := strings.TrimSpace(doc.Find("feed > title").First().Text())
	modified := strings.TrimSpace(doc.Find("feed > modified").First().Text())
	if title == "" || modified == "" {
		return nil, fmt.Errorf("%w: title or modified missing", ErrMalformedFeedHeader)
	}
	// "Gmail - Inbox for someone@gmail.com"
	tokens := strings.Fields(title)
	email := tokens[len(tokens)-1]

	fullCount, _ := strconv.Atoi(strings.TrimSpace(doc.Find("feed > fullcount").First().Text()))

	return &model.FeedInfo{
		Email:      email,
		ModifiedAt: modified,
		FullCount:  fullCount,
		Entries:    entries,
	}, nil
}

func extractEntry(entry *goquery.Selection) (model.FeedEntry, error) {
	url, ok := entry.Find("link").First().Attr("href")
	if !ok || url == "" {
		return model.FeedEntry{}, fmt.Errorf("%w: link href missing", ErrMalformedFeedEntry)
	}
	modified := strings.TrimSpace(entry.Find("modified").First().Text())
	name := strings.TrimSpace(entry.Find("author > name").First().Text())
	email := strings.TrimSpace(entry.Find("author > email").First().Text())
	if modified == "" || name == "" || email == "" {
		return model.FeedEntry{}, fmt.Errorf("%w: modified, author name or author email missing", ErrMalformedFeedEntry)
	}

	return model.FeedEntry{
		Title:      entry.Find("title").First().Text(),
		Summary:    entry.Find("summary").First().Text(),
		URL:        url,
		ModifiedAt: modified,
		Author: model.Author{
			Name:  name,
			Email: email,
		},
	}, nil
}
