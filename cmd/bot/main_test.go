package main

import "testing"

func TestParsePos(t *testing.T) {
	got, err := parsePos(" 3, 64,-7")
	if err != nil {
		t.Fatalf("parsePos: %v", err)
	}
	if got != [3]int{3, 64, -7} {
		t.Fatalf("got %v want [3 64 -7]", got)
	}
	for _, bad := range []string{"", "1,2", "1,2,x", "1,2,3,4"} {
		if _, err := parsePos(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
