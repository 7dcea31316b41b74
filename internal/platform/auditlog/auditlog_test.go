package auditlog

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventValidate(t *testing.T) {
	base := Event{
		OccurredAt:   time.Now().UTC(),
		Actor:        "user-1",
		Action:       "code.issue",
		ResourceType: "code",
		ResourceID:   "DOC-123",
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Event)
	}{
		{name: "zero time", mutate: func(e *Event) { e.OccurredAt = time.Time{} }},
		{name: "blank actor", mutate: func(e *Event) { e.Actor = "  " }},
		{name: "blank action", mutate: func(e *Event) { e.Action = "" }},
		{name: "blank resource type", mutate: func(e *Event) { e.ResourceType = "" }},
		{name: "blank resource id", mutate: func(e *Event) { e.ResourceID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := base
			tc.mutate(&event)
			if err := event.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestComputeIntegritySHA256Deterministic(t *testing.T) {
	event := Event{
		OccurredAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Actor:        "user-1",
		Action:       "code.issue",
		ResourceType: "code",
		ResourceID:   "DOC-123",
		RequestID:    "req-1",
	}
	payload, err := json.Marshal(map[string]any{"format": "EAN13"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	first, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("compute integrity: %v", err)
	}
	second, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("compute integrity: %v", err)
	}
	if first != second {
		t.Fatalf("integrity not deterministic: %q vs %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("integrity length = %d, want 64 hex chars", len(first))
	}

	event.ResourceID = "DOC-124"
	changed, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("compute integrity: %v", err)
	}
	if changed == first {
		t.Fatal("different events must not share an integrity hash")
	}
}
