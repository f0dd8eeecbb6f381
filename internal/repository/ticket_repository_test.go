package repository

import "testing"

func TestContainsPatternEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"pump":     "%pump%",
		"100%":     `%100\%%`,
		"a_b":      `%a\_b%`,
		`c:\temp`:  `%c:\\temp%`,
		`50%_off\`: `%50\%\_off\\%`,
	}
	for in, want := range cases {
		if got := containsPattern(in); got != want {
			t.Fatalf("containsPattern(%q) = %q want %q", in, got, want)
		}
	}
}
