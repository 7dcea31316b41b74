package barcode

import (
	"strings"
	"testing"
	"time"
)

type constantSource struct{ v int64 }

func (s constantSource) Int63() int64 { return s.v }
func (s constantSource) Seed(int64)   {}

func TestUniqueIDNeverRepeats(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := g.UniqueID("DOC", "")
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d calls: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestUniqueIDAppendsCounterOnCollision(t *testing.T) {
	fixedNow := func() time.Time { return time.Unix(1700000000, 0) }
	g := NewGeneratorWithClock(fixedNow, constantSource{v: 42})

	first := g.UniqueID("DOC", "")
	second := g.UniqueID("DOC", "")
	third := g.UniqueID("DOC", "")

	if first == second || second == third {
		t.Fatalf("collisions not resolved: %q %q %q", first, second, third)
	}
	if second != first+"00" {
		t.Fatalf("second id = %q, want %q", second, first+"00")
	}
	if third != first+"01" {
		t.Fatalf("third id = %q, want %q", third, first+"01")
	}
}

func TestUniqueIDPrefixSuffix(t *testing.T) {
	g := NewGenerator()
	id := g.UniqueID("DOC", "WH1")
	if !strings.HasPrefix(id, "DOC-") {
		t.Fatalf("id %q missing prefix", id)
	}
	if !strings.HasSuffix(id, "-WH1") {
		t.Fatalf("id %q missing suffix", id)
	}

	bare := g.UniqueID("", "")
	if strings.Contains(bare, "-") {
		t.Fatalf("bare id %q should have no separators", bare)
	}
}

func TestUniqueDigits(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		v := g.UniqueDigits(12)
		if len(v) != 12 {
			t.Fatalf("UniqueDigits(12) returned %d chars: %q", len(v), v)
		}
		for _, r := range v {
			if r < '0' || r > '9' {
				t.Fatalf("UniqueDigits returned non-digit: %q", v)
			}
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("duplicate digit payload: %q", v)
		}
		seen[v] = struct{}{}
	}

	if got := g.UniqueDigits(0); got != "" {
		t.Fatalf("UniqueDigits(0) = %q, want empty", got)
	}
}

func TestForget(t *testing.T) {
	fixedNow := func() time.Time { return time.Unix(1700000000, 0) }
	g := NewGeneratorWithClock(fixedNow, constantSource{v: 42})

	first := g.UniqueID("DOC", "")
	g.Forget(first)
	again := g.UniqueID("DOC", "")
	if again != first {
		t.Fatalf("forgotten id should be reissued: got %q, want %q", again, first)
	}
}
