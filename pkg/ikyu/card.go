package ikyu

import (
	"fmt"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// CSS selectors of the search result page.
const (
	selCard        = "section.restaurantCard_jpBMy"
	selName        = "h3.restaurantName_2s_sg"
	selArea        = "div.retaurantArea_s9Crj"
	selCoverImage  = "div.coverImages_3VYi2 meta[content]"
	areaSeparator  = "／"
	maxSummaryRune = 1200
)

// Card is one restaurant listed on a search page.
type Card struct {
	ID            string
	Name          string
	FoodType      string
	Link          string
	CoverImageURL string
	// Summary is the card rendered as markdown, for prompts and display.
	Summary string
}

// Page is the parsed content of one search results page.
type Page struct {
	Cards []Card
	// Skipped counts cards missing a link, name or food type.
	Skipped int
}

// ParseSearchPage extracts the restaurant cards of a search results page.
func ParseSearchPage(r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("parsing search page: %w", err)
	}

	var page Page
	doc.Find(selCard).Each(func(_ int, s *goquery.Selection) {
		c, ok := parseCard(s)
		if !ok {
			page.Skipped++
			return
		}
		page.Cards = append(page.Cards, c)
	})
	return page, nil
}

func parseCard(s *goquery.Selection) (Card, bool) {
	href, ok := s.Find("a[href]").First().Attr("href")
	if !ok {
		return Card{}, false
	}
	c := Card{
		ID:   idFromHref(href),
		Name: cleanText(s.Find(selName).First().Text()),
		Link: BaseURL + href,
	}
	if strings.HasPrefix(href, "http") {
		c.Link = href
	}

	parts := strings.Split(s.Find(selArea).First().Text(), areaSeparator)
	if len(parts) > 1 {
		c.FoodType = strings.TrimSpace(parts[1])
	}
	if c.ID == "" || c.Name == "" || c.FoodType == "" {
		return Card{}, false
	}

	if img, ok := s.Find(selCoverImage).First().Attr("content"); ok {
		c.CoverImageURL = img
	}
	if html, err := goquery.OuterHtml(s); err == nil {
		if summary, err := md.ConvertString(html); err == nil {
			c.Summary = truncate(strings.TrimSpace(summary), maxSummaryRune)
		}
	}
	return c, true
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
