package core

import "testing"

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		lower bool
		want  string
	}{
		{name: "empty", s: "", want: ""},
		{name: "whitespace only", s: " \t\n ", want: ""},
		{name: "trims", s: "  Hero  ", want: "Hero"},
		{name: "lowers", s: "  HeRo@Test.Test ", lower: true, want: "hero@test.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanString(tt.s, tt.lower); got != tt.want {
				t.Errorf("CleanString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "both empty", a: "", b: "", want: 0},
		{name: "one empty", a: "weather station", b: "", want: 0},
		{name: "identical", a: "build a weather station", b: "build a weather station", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SimilarityRatio(tt.a, tt.b); got != tt.want {
				t.Errorf("SimilarityRatio() = %v, want %v", got, tt.want)
			}
		})
	}

	// near-identical titles score high, unrelated ones low
	if got := SimilarityRatio("build a weather station", "build a weather station!"); got < .9 {
		t.Errorf("SimilarityRatio() = %v, want >= .9", got)
	}
	if got := SimilarityRatio("build a weather station", "interview a neighbor"); got > .8 {
		t.Errorf("SimilarityRatio() = %v, want <= .8", got)
	}
}
