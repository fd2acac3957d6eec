package matching

import (
	"math"
	"testing"
)

func TestScoreIdenticalCatalogCodes(t *testing.T) {
	subject := Occurrence{"catalogNumber": "I.42891-001"}
	related := Occurrence{"catalogNumber": "I 42891 - 001"}

	result, err := Score(subject, related)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result["catalogNumber"]; !got.Valid || got.Value != 1 {
		t.Fatalf("expected catalogNumber=1, got %+v", got)
	}
	if got := result[GlobalKey]; !got.Valid || got.Value != 1 {
		t.Fatalf("expected global=1, got %+v", got)
	}
}

func TestScoreCompositeCatalogCode(t *testing.T) {
	subject := Occurrence{"catalogNumber": "CMNA 2015-0001"}
	related := Occurrence{"catalogNumber": "CMNA 2015-0001, CMNA 2015-0004, CMNA 2015-0011"}

	result, err := Score(subject, related)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result["catalogNumber"]; !got.Valid || got.Value != 0.8 {
		t.Fatalf("expected 0.8, got %+v", got)
	}
}

func TestScoreCloseDates(t *testing.T) {
	subject := Occurrence{"year": 2022, "month": 5, "day": 22}
	related := Occurrence{"year": 2022, "month": 5, "day": 23}

	result, err := Score(subject, related)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result["year"]; !got.Valid || got.Value != 0.905 {
		t.Fatalf("expected 0.905, got %+v", got)
	}
}

func TestScoreAntipodalCoordinates(t *testing.T) {
	subject := Occurrence{"decimalLatitude": 0.0, "decimalLongitude": 0.0001}
	related := Occurrence{"decimalLatitude": 0.0, "decimalLongitude": 180.0}

	result, err := Score(subject, related)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result["decimalLatitude"]; !got.Valid || got.Value != 0 {
		t.Fatalf("expected ~0, got %+v", got)
	}
}

func TestScoreElevationInferredFromDepth(t *testing.T) {
	subject := Occurrence{"elevation": nil, "depth": 100.0}
	related := Occurrence{"elevation": -100.0, "depth": nil}

	result, err := Score(subject, related)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result["elevation"]; !got.Valid || got.Value != 1 {
		t.Fatalf("expected 1, got %+v", got)
	}
}

func TestScoreMissingDataGlobalEqualsSoleDefinedField(t *testing.T) {
	subject := Occurrence{"country": "France"}
	related := Occurrence{"country": "France"}

	result, err := Score(subject, related)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result[GlobalKey]; !got.Valid || got.Value != 1 {
		t.Fatalf("expected global=1 (sole defined field), got %+v", got)
	}
	for field, score := range result {
		if field == "country" || field == GlobalKey {
			continue
		}
		if score.Valid {
			t.Fatalf("expected field %q to be undefined, got %+v", field, score)
		}
	}
}

func TestScoreIdenticalOccurrenceGlobalIsOne(t *testing.T) {
	occ := Occurrence{
		"typeStatus":    "Holotype",
		"catalogNumber": "ABC-123",
		"country":       "France",
	}
	result, err := Score(occ, occ)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result[GlobalKey]; !got.Valid || got.Value != 1 {
		t.Fatalf("expected global=1 for identical inputs, got %+v", got)
	}
}

func TestScoreEmptyOccurrencesGlobalUndefined(t *testing.T) {
	result, err := Score(Occurrence{}, Occurrence{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result[GlobalKey]; got.Valid {
		t.Fatalf("expected global undefined when no field is defined, got %+v", got)
	}
}

func TestScoreFieldRangeAndGlobalRange(t *testing.T) {
	subject := Occurrence{
		"typeStatus": "Holotype", "basisOfRecord": "PreservedSpecimen",
		"recordedBy": "J. Smith", "recordNumber": "12", "collectionCode": "ABC",
		"catalogNumber": "ABC-1", "individualCount": 3, "family": "Felidae",
		"genus": "Panthera", "specificEpithet": "leo", "country": "France",
		"city": "Paris", "locality": "near the river",
		"elevation": 100.0, "year": 2022, "month": 5, "day": 22,
		"decimalLatitude": 45.0, "decimalLongitude": 4.0,
	}
	related := Occurrence{
		"typeStatus": "Paratype", "basisOfRecord": "FossilSpecimen",
		"recordedBy": "J. Smyth", "recordNumber": "99", "collectionCode": "XYZ",
		"catalogNumber": "ZZZ-9", "individualCount": 1, "family": "Canidae",
		"genus": "Canis", "specificEpithet": "lupus", "country": "Germany",
		"city": "Berlin", "locality": "near the lake",
		"elevation": -50.0, "year": 2019, "month": 1, "day": 1,
		"decimalLatitude": -10.0, "decimalLongitude": 100.0,
	}
	result, err := Score(subject, related)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for field, score := range result {
		if !score.Valid {
			continue
		}
		if score.Value < 0 || score.Value > 1 {
			t.Fatalf("field %q score %v out of [0,1]", field, score.Value)
		}
	}
}

func TestScoreSymmetricAcrossFields(t *testing.T) {
	subject := Occurrence{
		"recordedBy": "Jean Dupont", "family": "Felidae", "genus": "Panthera",
		"country": "France", "city": "Lyon",
		"year": 2020, "month": 3, "day": 1,
		"decimalLatitude": 10.0, "decimalLongitude": 20.0,
	}
	related := Occurrence{
		"recordedBy": "Jean Dupond", "family": "Felidae", "genus": "Panthera leo",
		"country": "France", "city": "Paris",
		"year": 2020, "month": 3, "day": 5,
		"decimalLatitude": 11.0, "decimalLongitude": 20.5,
	}
	forward, err := Score(subject, related)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	backward, err := Score(related, subject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for field, want := range forward {
		got := backward[field]
		if want.Valid != got.Valid {
			t.Fatalf("field %q: validity mismatch forward=%+v backward=%+v", field, want, got)
		}
		if want.Valid && math.Abs(want.Value-got.Value) > 1e-9 {
			t.Fatalf("field %q not symmetric: forward=%v backward=%v", field, want.Value, got.Value)
		}
	}
}

func TestRoundHalfToEven(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0.0005, 0.0}, // tie rounds to even (0.000)
		{0.0015, 0.002},
		{0.9048374180359595, 0.905},
		{1.0, 1.0},
		{0.0, 0.0},
	}
	for _, tc := range cases {
		if got := roundHalfToEven(tc.in, 3); got != tc.want {
			t.Fatalf("roundHalfToEven(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
