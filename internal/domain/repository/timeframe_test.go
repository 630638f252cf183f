package repository

import "testing"

func TestNormalizeInterval(t *testing.T) {
	cases := map[string]Interval{
		"":    Interval1d,
		"1h":  Interval1h,
		"1wk": Interval1wk,
		"7m":  Interval1d,
	}
	for in, want := range cases {
		if got := NormalizeInterval(in); got != want {
			t.Fatalf("NormalizeInterval(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestHigherInterval(t *testing.T) {
	if got := HigherInterval(Interval1d); got != Interval1wk {
		t.Fatalf("HigherInterval(1d) = %s", got)
	}
	if got := HigherInterval(Interval1wk); got != Interval1mo {
		t.Fatalf("HigherInterval(1wk) = %s", got)
	}
}
