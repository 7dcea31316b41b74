package requestid

import "testing"

func TestNew_LengthAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id, err := New()
		if err != nil {
			t.Fatalf("New() err=%v", err)
		}
		if len(id) != 24 {
			t.Fatalf("len(id)=%d, want 24", len(id))
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
