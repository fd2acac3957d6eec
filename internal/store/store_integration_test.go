//go:build integration
// +build integration

package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
)

// TestStoreRoundTrip exercises migrate/GetOrCreateUser/GetOrCreateOccurrence/
// RecordEvent/ListEvents against a live Postgres instance. Run with
// -tags=integration and OCCMATCH_TEST_POSTGRES_URL set.
func TestStoreRoundTrip(t *testing.T) {
	url := os.Getenv("OCCMATCH_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("OCCMATCH_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	user, err := s.GetOrCreateUser(ctx, "Jane Curator", "0000-0001-2345-6789")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	again, err := s.GetOrCreateUser(ctx, "Jane Curator", "0000-0001-2345-6789")
	if err != nil {
		t.Fatalf("GetOrCreateUser (dedup): %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("expected same user id on repeat lookup, got %d and %d", user.ID, again.ID)
	}

	refData, _ := json.Marshal(map[string]any{"catalogNumber": "ABC-123", "key": 1})
	refOcc, err := s.GetOrCreateOccurrence(ctx, 1, "dataset-1", "inst-1", "", refData)
	if err != nil {
		t.Fatalf("GetOrCreateOccurrence (ref): %v", err)
	}

	relData, _ := json.Marshal(map[string]any{"catalogNumber": "ABC-124", "key": 2})
	relOcc, err := s.GetOrCreateOccurrence(ctx, 2, "", "", "", relData)
	if err != nil {
		t.Fatalf("GetOrCreateOccurrence (related): %v", err)
	}

	decision := true
	eventID, err := s.RecordEvent(ctx, user.ID, refOcc.ID, "dataset-1", "inst-1", []OccurrenceRelation{
		{RelatedOccurrenceID: relOcc.ID, Decision: &decision, IsNewDecision: true},
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	events, err := s.ListEvents(ctx, EventFilter{EventID: eventID})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if len(events[0].Relations) != 1 || events[0].Relations[0].RelatedOccurrenceID != relOcc.ID {
		t.Fatalf("expected the recorded relation to round-trip, got %+v", events[0].Relations)
	}

	loaded, err := s.OccurrencesByID(ctx, []int64{refOcc.ID, relOcc.ID})
	if err != nil {
		t.Fatalf("OccurrencesByID: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(loaded))
	}
}
