package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/codeGROOVE-dev/tokyodine/pkg/gemini"
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

// parseGroups reads the -groups flag: groups separated by ";", locations by ",".
func parseGroups(s string) []restaurant.LocationGroup {
	var out []restaurant.LocationGroup
	for _, part := range strings.Split(s, ";") {
		var g restaurant.LocationGroup
		for _, l := range strings.Split(part, ",") {
			if l = strings.TrimSpace(l); l != "" {
				g.Locations = append(g.Locations, l)
			}
		}
		if len(g.Locations) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// decodeGroups accepts either a JSON array of groups or the
// "[locations] ... / [reason] ..." text format.
func decodeGroups(data []byte) ([]restaurant.LocationGroup, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' && !bytes.HasPrefix(trimmed, []byte("[locations]")) {
		var groups []restaurant.LocationGroup
		if err := json.Unmarshal(trimmed, &groups); err != nil {
			return nil, fmt.Errorf("parsing groups JSON: %w", err)
		}
		return groups, nil
	}
	groups := gemini.ParseLocationGroups(string(trimmed))
	if len(groups) == 0 {
		return nil, errors.New("no [locations]/[reason] pairs found")
	}
	return groups, nil
}

func loadGroups(path string) ([]restaurant.LocationGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading groups: %w", err)
	}
	return decodeGroups(data)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
