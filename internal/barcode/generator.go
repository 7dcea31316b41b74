package barcode

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Generator issues session-unique identifier strings. A mutex-guarded seen
// set guarantees no two calls return the same value for the lifetime of the
// generator; durable cross-restart uniqueness comes from the issued-code
// registry, not from here.
type Generator struct {
	mu   sync.Mutex
	seen map[string]struct{}

	now  func() time.Time
	rand *rand.Rand
}

func NewGenerator() *Generator {
	return &Generator{
		seen: make(map[string]struct{}),
		now:  time.Now,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewGeneratorWithClock is for tests that need a deterministic clock and
// random source.
func NewGeneratorWithClock(now func() time.Time, src rand.Source) *Generator {
	return &Generator{
		seen: make(map[string]struct{}),
		now:  now,
		rand: rand.New(src),
	}
}

// UniqueID combines prefix, the current timestamp and a short base-36 token.
// If the candidate collides with an earlier result, a two digit counter is
// appended and incremented until the value is unique. The final value is
// recorded before returning.
func (g *Generator) UniqueID(prefix string, suffix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := strconv.FormatInt(g.now().UnixMilli(), 36)
	token := strconv.FormatInt(int64(g.rand.Intn(36*36*36*36)), 36)

	parts := make([]string, 0, 3)
	if p := strings.TrimSpace(prefix); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, strings.ToUpper(ts+token))
	if s := strings.TrimSpace(suffix); s != "" {
		parts = append(parts, s)
	}
	base := strings.Join(parts, "-")

	candidate := base
	for counter := 0; ; counter++ {
		if _, exists := g.seen[candidate]; !exists {
			break
		}
		candidate = fmt.Sprintf("%s%02d", base, counter)
	}
	g.seen[candidate] = struct{}{}
	return candidate
}

// UniqueDigits returns a session-unique string of exactly n digits, suitable
// as a payload for the numeric symbologies.
func (g *Generator) UniqueDigits(n int) string {
	if n <= 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		var b strings.Builder
		b.Grow(n)
		for i := 0; i < n; i++ {
			b.WriteByte(byte('0' + g.rand.Intn(10)))
		}
		candidate := b.String()
		if _, exists := g.seen[candidate]; exists {
			continue
		}
		g.seen[candidate] = struct{}{}
		return candidate
	}
}

// Forget drops a value from the seen set so it can be issued again, used
// when a later stage rejects the candidate.
func (g *Generator) Forget(value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, value)
}
