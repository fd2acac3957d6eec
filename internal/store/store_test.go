package store

import "testing"

func TestHashOccurrenceDeterministic(t *testing.T) {
	a := HashOccurrence([]byte(`{"catalogNumber":"ABC-123"}`))
	b := HashOccurrence([]byte(`{"catalogNumber":"ABC-123"}`))
	if a != b {
		t.Fatalf("expected identical payloads to hash the same, got %q and %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected a 64-char hex sha256 digest, got %d chars", len(a))
	}
}

func TestHashOccurrenceDistinguishesPayloads(t *testing.T) {
	a := HashOccurrence([]byte(`{"catalogNumber":"ABC-123"}`))
	b := HashOccurrence([]byte(`{"catalogNumber":"ABC-124"}`))
	if a == b {
		t.Fatalf("expected distinct payloads to hash differently")
	}
}
