package main

import "testing"

func TestParseInventory(t *testing.T) {
	got, err := parseInventory("dirt:10, TORCH:2,DIRT:5,")
	if err != nil {
		t.Fatalf("parseInventory: %v", err)
	}
	if got["DIRT"] != 15 || got["TORCH"] != 2 || len(got) != 2 {
		t.Fatalf("got %v want DIRT:15 TORCH:2", got)
	}
	for _, bad := range []string{"DIRT", "DIRT:x", "DIRT:-1"} {
		if _, err := parseInventory(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("SHELTERD_TEST_BOOL", "true")
	if !envBool("SHELTERD_TEST_BOOL", false) {
		t.Fatalf("envBool: got false want true")
	}
	t.Setenv("SHELTERD_TEST_BOOL", "nope")
	if envBool("SHELTERD_TEST_BOOL", false) {
		t.Fatalf("envBool: bad value should fall back to default")
	}
}
