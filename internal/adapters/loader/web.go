package loader

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

const maxPageBytes = 5 << 20

// WebLoader fetches a URL and extracts the readable text of the page.
type WebLoader struct {
	client    *http.Client
	userAgent string
}

// NewWebLoader creates a web loader.
func NewWebLoader(timeout time.Duration) *WebLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebLoader{
		client:    &http.Client{Timeout: timeout},
		userAgent: "workspace-rag/1.0",
	}
}

// Load fetches url. HTML pages are reduced to their visible text; other
// text content types are kept as is.
func (l *WebLoader) Load(ctx context.Context, url string) (*entities.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	var title, text string
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		doc, err := html.Parse(strings.NewReader(string(body)))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", url, err)
		}
		title = extractTitle(doc)
		text = extractText(doc)
	case strings.HasPrefix(mediaType, "text/"):
		text = strings.TrimSpace(string(body))
	default:
		return nil, fmt.Errorf("unsupported content type %q at %s", mediaType, url)
	}

	if text == "" {
		return nil, fmt.Errorf("no text found at %s", url)
	}
	logging.Debug("Fetched %s: %d chars", url, len(text))

	name := title
	if name == "" {
		name = url
	}
	meta := map[string]string{"url": url}
	if title != "" {
		meta["title"] = title
	}
	return &entities.Document{
		Name:     name,
		Origin:   url,
		Kind:     entities.SourceURL,
		Segments: []entities.Segment{{Text: text, Metadata: meta}},
	}, nil
}

func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return title
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true,
	"nav": true, "footer": true, "svg": true, "template": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "pre": true, "blockquote": true,
}

// extractText returns the visible text of doc with one line per block element.
func extractText(doc *html.Node) string {
	var b strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if words := strings.Fields(n.Data); len(words) > 0 {
				b.WriteString(strings.Join(words, " "))
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	traverse(doc)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
