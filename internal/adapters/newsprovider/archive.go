package newsprovider

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Amund211/mediagate/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// How many ancestors of a link to search for its timestamp
const timeSearchDepth = 3

func attr(node *html.Node, key string) string {
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.Join(strings.Fields(b.String()), " ")
}

func findTime(node *html.Node) (time.Time, bool) {
	if node.Type == html.ElementNode && node.DataAtom == atom.Time {
		if t, err := time.Parse(time.RFC3339, attr(node, "datetime")); err == nil {
			return t.UTC(), true
		}
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if t, ok := findTime(c); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func nearestTime(anchor *html.Node) time.Time {
	node := anchor
	for range timeSearchDepth {
		if node.Parent == nil {
			break
		}
		node = node.Parent
		if t, ok := findTime(node); ok {
			return t
		}
	}
	return time.Time{}
}

// isArticlePath matches /news/<date>/<slug> style links, not the archive index itself
func isArticlePath(path string) bool {
	rest, ok := strings.CutPrefix(path, "/news/")
	return ok && strings.Trim(rest, "/") != "" && strings.Contains(strings.Trim(rest, "/"), "/")
}

func parseArchive(data []byte, archiveURL string) ([]domain.NewsItem, error) {
	base, err := url.Parse(archiveURL)
	if err != nil {
		return nil, fmt.Errorf("invalid archive url: %w", err)
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse news archive: %w", domain.ErrUpstreamFailure, err)
	}

	items := []domain.NewsItem{}
	seen := map[string]bool{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			href, err := base.Parse(attr(n, "href"))
			if err == nil && href.Host == base.Host && isArticlePath(href.Path) {
				href.Fragment = ""
				link := href.String()
				title := textContent(n)
				if title != "" && !seen[link] {
					seen[link] = true
					items = append(items, domain.NewsItem{
						ID:          link,
						Title:       title,
						Link:        link,
						PublishedAt: nearestTime(n),
						Categories:  []string{},
					})
				}
			}
			// Don't descend into links
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %w in archive", domain.ErrUpstreamFailure, errNoItems)
	}

	return items, nil
}
