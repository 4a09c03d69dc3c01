package retail

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/codmatch/backend/internal/domain"
)

// blockMarkers are fragments of the retailer's access-denied page
var blockMarkers = []string{"Access Denied", "You don't have permission"}

// Parser reads product tiles and codes out of retailer pages
type Parser struct {
	base     *url.URL
	selector string
	code     *regexp.Regexp
}

// NewParser creates a parser. Relative product links resolve against
// baseURL; selector matches the product title elements.
func NewParser(baseURL, selector, codePattern string) (*Parser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("%w: empty title selector", domain.ErrInvalidRequest)
	}
	code, err := regexp.Compile(codePattern)
	if err != nil {
		return nil, fmt.Errorf("%w: code pattern: %v", domain.ErrInvalidRequest, err)
	}
	return &Parser{base: base, selector: selector, code: code}, nil
}

// Products returns the titled product tiles of a search page in page order.
// The link is taken from the enclosing anchor, or the first anchor inside
// the title.
func (p *Parser) Products(page string) ([]domain.RetailProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var products []domain.RetailProduct
	doc.Find(p.selector).Each(func(i int, s *goquery.Selection) {
		title := strings.Join(strings.Fields(s.Text()), " ")
		if title == "" {
			return
		}

		href, ok := s.Closest("a").Attr("href")
		if !ok {
			href, ok = s.Find("a[href]").First().Attr("href")
		}

		product := domain.RetailProduct{Title: title}
		if ok {
			product.URL = p.resolve(href)
		}
		products = append(products, product)
	})

	return products, nil
}

// Code returns the first product code found in text, or ""
func (p *Parser) Code(text string) string {
	return p.code.FindString(text)
}

// Blocked reports whether page is the retailer's access-denied page
func (p *Parser) Blocked(page string) bool {
	return IsBlocked(page)
}

// IsBlocked reports whether page carries an access-denied marker
func IsBlocked(page string) bool {
	for _, m := range blockMarkers {
		if strings.Contains(page, m) {
			return true
		}
	}
	return false
}

func (p *Parser) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}
