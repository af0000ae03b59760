package articleextractor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Amund211/mediagate/internal/adapters/upstream"
	"github.com/Amund211/mediagate/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const name = "articles"

const maxPageBytes = 4 << 20

type Dispatcher interface {
	Dispatch(ctx context.Context, request upstream.Request) (upstream.Response, error)
}

type ArticleExtractor interface {
	// CanonicalURL validates an article url against the news host
	CanonicalURL(articleURL string) (string, error)
	Extract(ctx context.Context, articleURL string) (domain.Article, error)
}

type articleExtractor struct {
	dispatcher  Dispatcher
	allowedHost string

	tracer trace.Tracer
}

func NewArticleExtractor(dispatcher Dispatcher, allowedHost string) ArticleExtractor {
	return &articleExtractor{
		dispatcher:  dispatcher,
		allowedHost: allowedHost,
		tracer:      otel.Tracer("mediagate/articleextractor"),
	}
}

func (e *articleExtractor) CanonicalURL(articleURL string) (string, error) {
	parsed, err := domain.ParseAllowedURL(articleURL, e.allowedHost)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

func (e *articleExtractor) Extract(ctx context.Context, articleURL string) (domain.Article, error) {
	ctx, span := e.tracer.Start(ctx, "ArticleExtractor.Extract")
	defer span.End()

	parsed, err := domain.ParseAllowedURL(articleURL, e.allowedHost)
	if err != nil {
		return domain.Article{}, err
	}

	response, err := e.dispatcher.Dispatch(ctx, upstream.Request{
		Method:       http.MethodGet,
		URL:          parsed.String(),
		Header:       http.Header{"Accept": []string{"text/html"}},
		MaxBodyBytes: maxPageBytes,
	})
	if err != nil {
		return domain.Article{}, err
	}
	if !response.IsSuccess() {
		return domain.Article{}, upstream.ErrorForStatus(name, response.StatusCode, "")
	}

	return extract(response.Body, parsed)
}

func attr(node *html.Node, key string) string {
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(node *html.Node, key, value string) {
	for i, a := range node.Attr {
		if a.Key == key {
			node.Attr[i].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: value})
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

func findFirst(node *html.Node, match func(*html.Node) bool) *html.Node {
	if match(node) {
		return node
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

type pageMeta struct {
	title       string
	description string
	image       string
}

func readMeta(root *html.Node) pageMeta {
	var meta pageMeta
	var fallbackDescription string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
			content := strings.TrimSpace(attr(n, "content"))
			switch strings.ToLower(attr(n, "property")) {
			case "og:title":
				meta.title = content
			case "og:description":
				meta.description = content
			case "og:image":
				meta.image = content
			}
			if strings.EqualFold(attr(n, "name"), "description") {
				fallbackDescription = content
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if meta.title == "" {
		if title := findFirst(root, isElement(atom.Title)); title != nil {
			meta.title = textContent(title)
		}
	}
	if meta.description == "" {
		meta.description = fallbackDescription
	}

	return meta
}

// Elements that never belong in an extracted body
var strippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Form:     true,
	atom.Object:   true,
	atom.Embed:    true,
}

// sanitize drops unwanted elements and makes links absolute, collecting image urls
func sanitize(node *html.Node, base *url.URL, images *[]string, seen map[string]bool) {
	for c := node.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode || (c.Type == html.ElementNode && strippedElements[c.DataAtom]) {
			node.RemoveChild(c)
			c = next
			continue
		}

		if c.Type == html.ElementNode {
			// Inline event handlers
			kept := c.Attr[:0]
			for _, a := range c.Attr {
				if !strings.HasPrefix(strings.ToLower(a.Key), "on") {
					kept = append(kept, a)
				}
			}
			c.Attr = kept

			switch c.DataAtom {
			case atom.Img:
				src := attr(c, "src")
				if src == "" {
					src = attr(c, "data-src")
				}
				if resolved, ok := resolve(base, src); ok {
					setAttr(c, "src", resolved)
					if !seen[resolved] {
						seen[resolved] = true
						*images = append(*images, resolved)
					}
				}
			case atom.A:
				if resolved, ok := resolve(base, attr(c, "href")); ok {
					setAttr(c, "href", resolved)
				}
			}
		}

		sanitize(c, base, images, seen)
		c = next
	}
}

func resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	resolved, err := base.Parse(ref)
	if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
		return "", false
	}
	return resolved.String(), true
}

func extract(data []byte, pageURL *url.URL) (domain.Article, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return domain.Article{}, fmt.Errorf("%w: failed to parse article: %w", domain.ErrUpstreamFailure, err)
	}

	meta := readMeta(root)

	body := findFirst(root, isElement(atom.Article))
	if body == nil {
		body = findFirst(root, isElement(atom.Main))
	}

	images := []string{}
	bodyHTML := ""
	if body != nil {
		sanitize(body, pageURL, &images, map[string]bool{})

		var b bytes.Buffer
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&b, c); err != nil {
				return domain.Article{}, fmt.Errorf("failed to render article body: %w", err)
			}
		}
		bodyHTML = strings.TrimSpace(b.String())
	}

	if meta.title == "" && bodyHTML == "" {
		return domain.Article{}, fmt.Errorf("%w: no article content found", domain.ErrUpstreamFailure)
	}

	hero, ok := resolve(pageURL, meta.image)
	if !ok && len(images) > 0 {
		hero = images[0]
	}

	return domain.Article{
		URL:         pageURL.String(),
		Title:       meta.title,
		Description: meta.description,
		HeroImage:   hero,
		BodyHTML:    bodyHTML,
		Images:      images,
	}, nil
}
