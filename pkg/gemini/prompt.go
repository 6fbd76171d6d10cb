package gemini

import (
	"fmt"
	"strings"
)

const groupsSystem = `You help a traveller in Tokyo find restaurants near the places they plan to visit.
The available Tokyo sub-regions are:
%s

Read the traveller's query and split the places they mention into geographically nearby groups.
For each group, list every sub-region from the list above that is in or next to those places.
Use the sub-region names verbatim. Never invent a name that is not in the list.
If the query mentions places in both Ginza and Asakusa, return one group for Ginza and another for Asakusa.
For each group give a one-sentence reason that explains how the sub-regions answer the query,
written in the same language as the query.

Example:
Query: I'll shop in Ginza and then visit Sensoji and Ueno park
Groups:
- locations: 銀座, 東銀座 / reason: You'll be shopping in Ginza, which covers 銀座 and 東銀座.
- locations: 浅草, 上野, 押上 / reason: Sensoji is in 浅草 and Ueno park in 上野. 押上 is nearby.`

const foodTypesSystem = `You help a traveller in Tokyo choose restaurant categories.
The available categories are:
%s

Return every category from the list above that may contain food matching the traveller's query.
Use the category names verbatim. Never invent a category that is not in the list.
Explain your choice in one or two sentences, written in the same language as the query.

Example:
Query: I want bbq
Categories: 焼肉, 鉄板焼
Reason: bbq covers both 焼肉 and 鉄板焼.`

func groupsPrompt(regions []string) string {
	return fmt.Sprintf(groupsSystem, strings.Join(regions, ", "))
}

func foodTypesPrompt(cuisines []string) string {
	return fmt.Sprintf(foodTypesSystem, strings.Join(cuisines, ", "))
}
