package normalize

import (
	"testing"
)

func TestText(t *testing.T) {
	n := NewNormalizer(Options{TrimNBSP: true, CollapseSpaces: true})

	tests := []struct {
		input    string
		expected string
	}{
		{"  Cozy cabin  ", "Cozy cabin"},
		{"4 guests ·\n  2 bedrooms", "4 guests · 2 bedrooms"},
		{"$1,200 night", "$1,200 night"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := n.Text(tt.input); got != tt.expected {
			t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestTextWithoutOptionsOnlyTrims(t *testing.T) {
	n := NewNormalizer(Options{})

	if got := n.Text("  a  b  "); got != "a  b" {
		t.Errorf("Text() = %q", got)
	}
}

func TestLines(t *testing.T) {
	n := NewNormalizer(Options{CollapseSpaces: true})

	got := n.Lines([]string{" Wifi ", "", "   ", "Free  parking"})
	want := []string{"Wifi", "Free parking"}
	if len(got) != len(want) {
		t.Fatalf("Lines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Lines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if empty := n.Lines(nil); empty == nil || len(empty) != 0 {
		t.Errorf("Lines(nil) = %#v, want empty non-nil slice", empty)
	}
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://www.airbnb.com"

	tests := []struct {
		href     string
		expected string
	}{
		{"/rooms/123?adults=3", "https://www.airbnb.com/rooms/123?adults=3"},
		{"https://www.airbnb.ca/rooms/9", "https://www.airbnb.ca/rooms/9"},
		{"  /rooms/5  ", "https://www.airbnb.com/rooms/5"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := AbsoluteURL(base, tt.href); got != tt.expected {
			t.Errorf("AbsoluteURL(%q) = %q, want %q", tt.href, got, tt.expected)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input string
		value float64
		ok    bool
	}{
		{"$120 night", 120, true},
		{"$1,234.50 total", 1234.5, true},
		{"€95", 95, true},
		{"Price on request", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		value, ok := ParsePrice(tt.input)
		if ok != tt.ok || value != tt.value {
			t.Errorf("ParsePrice(%q) = (%v, %v), want (%v, %v)", tt.input, value, ok, tt.value, tt.ok)
		}
	}
}
