package services

import (
	"testing"
)

func TestComputeKeyCanonicalizesBodyOrder(t *testing.T) {
	te := newTestEnv(t)
	a := te.idem.ComputeKey("assign", 1, 2, map[string]string{"expert_1": "exp", "action": "assign"}, "")
	b := te.idem.ComputeKey("assign", 1, 2, map[string]string{"action": "assign", "expert_1": "exp"}, "")
	if a != b {
		t.Fatalf("key differs by map order: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestComputeKeyDistinguishesInputs(t *testing.T) {
	te := newTestEnv(t)
	base := te.idem.ComputeKey("assign", 1, 2, map[string]string{"a": "1"}, "")
	cases := map[string]string{
		"endpoint": te.idem.ComputeKey("other", 1, 2, map[string]string{"a": "1"}, ""),
		"user":     te.idem.ComputeKey("assign", 9, 2, map[string]string{"a": "1"}, ""),
		"case":     te.idem.ComputeKey("assign", 1, 9, map[string]string{"a": "1"}, ""),
		"body":     te.idem.ComputeKey("assign", 1, 2, map[string]string{"a": "2"}, ""),
		"extra":    te.idem.ComputeKey("assign", 1, 2, map[string]string{"a": "1"}, "x"),
	}
	for name, key := range cases {
		if key == base {
			t.Fatalf("changing %s did not change the key", name)
		}
	}
}
