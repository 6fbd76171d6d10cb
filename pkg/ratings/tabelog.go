package ratings

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TabelogURL is the Tabelog site root.
const TabelogURL = "https://tabelog.com"

const (
	selTabelogName  = "a.list-rst__rst-name-target.cpy-rst-name"
	selTabelogData  = "div.list-rst__rst-data"
	selTabelogScore = "span.c-rating__val.c-rating__val--strong.list-rst__rating-val"
)

// Tabelog looks up scores on Tabelog's keyword search.
type Tabelog struct {
	fetcher Fetcher
	logger  *slog.Logger
	base    string
}

// NewTabelog returns a Tabelog provider.
func NewTabelog(f Fetcher, logger *slog.Logger) *Tabelog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tabelog{fetcher: f, logger: logger, base: TabelogURL}
}

// Name implements Provider.
func (*Tabelog) Name() string { return "tabelog" }

// SearchURL is the keyword search for a restaurant name.
func (t *Tabelog) SearchURL(name string) string {
	q := url.Values{}
	q.Set("vs", "1")
	q.Set("sa", "")
	q.Set("sk", name)
	q.Set("sw", name)
	return strings.TrimSuffix(t.base, "/") + "/rstLst/?" + q.Encode()
}

// Lookup returns the score of the first search result whose name matches.
func (t *Tabelog) Lookup(ctx context.Context, name string) (Rating, bool, error) {
	u := t.SearchURL(name)
	body, err := t.fetcher.Get(ctx, u, http.Header{"Accept": {"text/html"}, "Accept-Language": {"ja"}})
	if err != nil {
		return Rating{}, false, fmt.Errorf("tabelog search: %w", err)
	}
	r, ok, err := ParseTabelogSearch(bytes.NewReader(body), name)
	if err != nil {
		return Rating{}, false, err
	}
	if !ok {
		t.logger.Debug("no matching restaurant on tabelog", "name", name, "url", u)
	}
	return r, ok, nil
}

// ParseTabelogSearch finds name in a search results page. A match without a
// published score returns ok with a nil Score.
func ParseTabelogSearch(r io.Reader, name string) (Rating, bool, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Rating{}, false, fmt.Errorf("parsing tabelog page: %w", err)
	}

	var (
		found Rating
		ok    bool
	)
	doc.Find(selTabelogName).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !NamesMatch(strings.TrimSpace(s.Text()), name) {
			return true
		}
		ok = true
		found.Link, _ = s.Attr("href")
		text := strings.TrimSpace(s.Closest(selTabelogData).Find(selTabelogScore).First().Text())
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			found.Score = &v
		}
		return false
	})
	return found, ok, nil
}
