// Package ikyu scrapes restaurant listings and reservation calendars from restaurant.ikyu.com.
package ikyu

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BaseURL is the ikyu restaurant site.
const BaseURL = "https://restaurant.ikyu.com"

// TokyoCode is ikyu's area code for Tokyo.
const TokyoCode = "03001"

// DefaultGuests is the party size used in searches.
const DefaultGuests = 4

// SearchURL builds the first results page for cuisines in sub-regions of
// Tokyo, sorted by ikyu's gourmet ranking.
func SearchURL(cuisineCodes, regionCodes []string, guests int) string {
	if guests <= 0 {
		guests = DefaultGuests
	}
	q := url.Values{}
	q.Set("pups", strconv.Itoa(guests))
	q.Set("rtpc", strings.Join(cuisineCodes, ","))
	q.Set("rac1", TokyoCode)
	q.Set("rac2", strings.Join(regionCodes, ","))
	q.Set("pndt", "1")
	q.Set("ptaround", "0")
	q.Set("xsrt", "gourmet")
	q.Set("xpge", "1")
	return BaseURL + "/search?" + q.Encode()
}

// PageURLs returns the first pages of a search, numbered from 1.
func PageURLs(search string, pages int) ([]string, error) {
	u, err := url.Parse(search)
	if err != nil {
		return nil, fmt.Errorf("parsing search URL: %w", err)
	}
	q := u.Query()
	out := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		q.Set("xpge", strconv.Itoa(page))
		u.RawQuery = q.Encode()
		out = append(out, u.String())
	}
	return out, nil
}

// CalendarURL is the availability API endpoint for a restaurant.
func CalendarURL(base, id string) string {
	return fmt.Sprintf("%s/api/v1/restaurants/%s/calendar", strings.TrimSuffix(base, "/"), url.PathEscape(id))
}

// idFromHref extracts the restaurant id from a card link like "/111516?num_guests=2".
func idFromHref(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	return strings.Trim(href, "/")
}
