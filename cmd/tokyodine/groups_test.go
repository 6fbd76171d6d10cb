package main

import (
	"reflect"
	"testing"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

func TestParseGroups(t *testing.T) {
	tests := []struct {
		in   string
		want []restaurant.LocationGroup
	}{
		{"", nil},
		{"銀座", []restaurant.LocationGroup{{Locations: []string{"銀座"}}}},
		{" 銀座, 東銀座 ; 渋谷 ;; ", []restaurant.LocationGroup{
			{Locations: []string{"銀座", "東銀座"}},
			{Locations: []string{"渋谷"}},
		}},
	}
	for _, tt := range tests {
		if got := parseGroups(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseGroups(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeGroups(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []restaurant.LocationGroup
		wantErr bool
	}{
		{
			name: "json",
			in:   `[{"locations":["銀座","東銀座"],"reason":"shopping"}]`,
			want: []restaurant.LocationGroup{{Locations: []string{"銀座", "東銀座"}, Reason: "shopping"}},
		},
		{
			name: "text",
			in:   "[locations] 銀座, 東銀座\n[reason] shopping\n[locations] 渋谷\n[reason] nightlife\n",
			want: []restaurant.LocationGroup{
				{Locations: []string{"銀座", "東銀座"}, Reason: "shopping"},
				{Locations: []string{"渋谷"}, Reason: "nightlife"},
			},
		},
		{name: "empty", in: "  \n"},
		{name: "bad json", in: `[{"locations":`, wantErr: true},
		{name: "no pairs", in: "銀座 and 渋谷", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeGroups([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeGroups() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeGroups() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(" 寿司, ,天ぷら "); !reflect.DeepEqual(got, []string{"寿司", "天ぷら"}) {
		t.Errorf("splitList() = %v", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v, want nil", got)
	}
}
