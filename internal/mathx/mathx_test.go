package mathx

import "testing"

func TestFloorDivMod(t *testing.T) {
	cases := []struct{ a, b, q, m int }{
		{7, 16, 0, 7},
		{16, 16, 1, 0},
		{-1, 16, -1, 15},
		{-16, 16, -1, 0},
		{-17, 16, -2, 15},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.q {
			t.Fatalf("FloorDiv(%d,%d) got %d want %d", c.a, c.b, got, c.q)
		}
		if got := Mod(c.a, c.b); got != c.m {
			t.Fatalf("Mod(%d,%d) got %d want %d", c.a, c.b, got, c.m)
		}
	}
}

func TestClampAndSign(t *testing.T) {
	if got := ClampInt(9, 2, 5); got != 5 {
		t.Fatalf("clamp high: got %d", got)
	}
	if got := ClampInt(-3, 2, 5); got != 2 {
		t.Fatalf("clamp low: got %d", got)
	}
	if Sign(-4) != -1 || Sign(0) != 0 || Sign(12) != 1 {
		t.Fatalf("sign mismatch")
	}
}

func TestHash2Deterministic(t *testing.T) {
	if Hash2(7, 3, -4) != Hash2(7, 3, -4) {
		t.Fatalf("hash not deterministic")
	}
	if Hash2(7, 3, -4) == Hash2(8, 3, -4) {
		t.Fatalf("seed ignored")
	}
}
