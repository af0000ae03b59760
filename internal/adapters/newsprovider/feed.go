package newsprovider

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/Amund211/mediagate/internal/domain"
	"golang.org/x/net/html/charset"
)

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title      string   `xml:"title"`
	Link       string   `xml:"link"`
	GUID       string   `xml:"guid"`
	PubDate    string   `xml:"pubDate"`
	Categories []string `xml:"category"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

func parsePubDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseFeed(data []byte) ([]domain.NewsItem, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	// Feeds in the wild carry html entities
	decoder.Strict = false
	decoder.Entity = xml.HTMLEntity

	var feed rssFeed
	if err := decoder.Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse news feed: %w", domain.ErrUpstreamFailure, err)
	}

	items := make([]domain.NewsItem, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		link := strings.TrimSpace(item.Link)
		title := strings.TrimSpace(item.Title)
		if link == "" || title == "" {
			continue
		}

		id := strings.TrimSpace(item.GUID)
		if id == "" {
			id = link
		}

		categories := make([]string, 0, len(item.Categories))
		for _, category := range item.Categories {
			if category = strings.TrimSpace(category); category != "" {
				categories = append(categories, category)
			}
		}

		items = append(items, domain.NewsItem{
			ID:          id,
			Title:       title,
			Link:        link,
			PublishedAt: parsePubDate(item.PubDate),
			Categories:  categories,
		})
	}

	return items, nil
}
