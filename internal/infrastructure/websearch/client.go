package websearch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// Config holds configuration for the search-engine client
type Config struct {
	URL               string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client runs search-engine queries and extracts result links
type Client struct {
	httpClient *http.Client
	searchURL  string
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient creates a search-engine client
func NewClient(config Config) *Client {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 0.2
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		searchURL:  config.URL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// SearchLinks runs query and returns the decoded result links in page order
func (c *Client) SearchLinks(ctx context.Context, query string) ([]string, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	searchURL := fmt.Sprintf("%s?q=%s", c.searchURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	links, err := ParseLinks(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	log.Printf("[SEARCH] %d links for %q", len(links), query)
	return links, nil
}

// ParseLinks returns every anchor href in body, unwrapping "/url?q=" redirects
// and percent-decoding the result. Duplicates are dropped.
func ParseLinks(body io.Reader) ([]string, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]bool)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if link := decodeLink(attr.Val); link != "" && !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return links, nil
}

func decodeLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	if strings.HasPrefix(href, "/url?") {
		if parsed, err := url.Parse(href); err == nil {
			if target := parsed.Query().Get("q"); target != "" {
				return target
			}
		}
	}
	if decoded, err := url.QueryUnescape(href); err == nil {
		return decoded
	}
	return href
}
