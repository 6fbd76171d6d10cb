package gemini

import (
	"bufio"
	"context"
	"errors"
	"slices"
	"strings"

	"google.golang.org/genai"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

// ErrNoGroups is returned when nothing in the answer names a known sub-region.
var ErrNoGroups = errors.New("no known locations in the answer")

type groupsAnswer struct {
	Groups []struct {
		Reason    string   `json:"reason"`
		Locations []string `json:"locations"`
	} `json:"groups"`
}

func groupsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"groups": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"locations": {
							Type:        genai.TypeArray,
							Items:       &genai.Schema{Type: genai.TypeString},
							Description: "Sub-region names copied verbatim from the list",
						},
						"reason": {
							Type:        genai.TypeString,
							Description: "Why these sub-regions answer the query, in the query's language",
						},
					},
					PropertyOrdering: []string{"locations", "reason"},
					Required:         []string{"locations", "reason"},
				},
			},
		},
		Required: []string{"groups"},
	}
}

// GroupLocations splits the places in query into groups of nearby sub-regions
// taken from regions. Unknown names in the answer are dropped.
func (c *Client) GroupLocations(ctx context.Context, query string, regions *restaurant.Table) ([]restaurant.LocationGroup, error) {
	var ans groupsAnswer
	if err := c.generate(ctx, "groups", groupsPrompt(regions.Labels()), query, groupsSchema(), &ans); err != nil {
		return nil, err
	}
	var groups []restaurant.LocationGroup
	for _, g := range ans.Groups {
		groups = append(groups, restaurant.LocationGroup{Locations: g.Locations, Reason: strings.TrimSpace(g.Reason)})
	}
	groups = c.known(groups, regions)
	if len(groups) == 0 {
		return nil, ErrNoGroups
	}
	return groups, nil
}

// known removes unknown and repeated locations, then groups left empty.
func (c *Client) known(groups []restaurant.LocationGroup, regions *restaurant.Table) []restaurant.LocationGroup {
	labels := regions.Labels()
	var out []restaurant.LocationGroup
	for _, g := range groups {
		var locs []string
		for _, l := range g.Locations {
			l = strings.TrimSpace(l)
			if !slices.Contains(labels, l) {
				c.logger.Warn("dropping unknown location from gemini answer", "location", l)
				continue
			}
			if !slices.Contains(locs, l) {
				locs = append(locs, l)
			}
		}
		if len(locs) == 0 {
			continue
		}
		g.Locations = locs
		out = append(out, g)
	}
	return out
}

type foodTypesAnswer struct {
	Reason    string   `json:"reason"`
	FoodTypes []string `json:"food_types"`
}

// Suggestion is a set of cuisine labels with the model's explanation.
type Suggestion struct {
	Reason    string
	FoodTypes []string
}

// SuggestFoodTypes picks the cuisine labels in cuisines that fit query.
func (c *Client) SuggestFoodTypes(ctx context.Context, query string, cuisines *restaurant.Table) (Suggestion, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"food_types": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Category names copied verbatim from the list",
			},
			"reason": {Type: genai.TypeString},
		},
		PropertyOrdering: []string{"food_types", "reason"},
		Required:         []string{"food_types", "reason"},
	}
	var ans foodTypesAnswer
	if err := c.generate(ctx, "food_types", foodTypesPrompt(cuisines.Labels()), query, schema, &ans); err != nil {
		return Suggestion{}, err
	}
	labels := cuisines.Labels()
	s := Suggestion{Reason: strings.TrimSpace(ans.Reason)}
	for _, f := range ans.FoodTypes {
		f = strings.TrimSpace(f)
		if slices.Contains(labels, f) && !slices.Contains(s.FoodTypes, f) {
			s.FoodTypes = append(s.FoodTypes, f)
		}
	}
	return s, nil
}

// ParseLocationGroups reads the line-oriented answer format:
//
//	[locations] 銀座, 東銀座
//	[reason] You'll be shopping in Ginza.
//
// A group is emitted when its [reason] line is read.
func ParseLocationGroups(answer string) []restaurant.LocationGroup {
	var (
		out []restaurant.LocationGroup
		cur restaurant.LocationGroup
	)
	sc := bufio.NewScanner(strings.NewReader(answer))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, "[locations]"):
			cur.Locations = nil
			for _, l := range strings.Split(strings.TrimSpace(strings.Replace(line, "[locations]", "", 1)), ",") {
				if l = strings.TrimSpace(l); l != "" {
					cur.Locations = append(cur.Locations, l)
				}
			}
		case strings.Contains(line, "[reason]"):
			cur.Reason = strings.TrimSpace(strings.Replace(line, "[reason]", "", 1))
			out = append(out, cur)
			cur = restaurant.LocationGroup{}
		}
	}
	return out
}

// ParseList reads a comma-separated answer from its first line, the format
// the older prompts asked for.
func ParseList(answer string) []string {
	first, _, _ := strings.Cut(strings.TrimSpace(answer), "\n")
	var out []string
	for _, s := range strings.Split(first, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
