package matching

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var reNotAlphanum = regexp.MustCompile(`[^A-Z0-9]+`)

// trimString maps absent/nil/empty to the empty string; non-null values
// have surrounding whitespace removed. Spec §4.1 "trim".
func trimString(raw any) string {
	s, ok := asString(raw)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// trimStringOrAbsent preserves "absent" instead of collapsing it to "". Spec
// §4.1 "trim or absent".
func trimStringOrAbsent(raw any) OptString {
	s, ok := asString(raw)
	if !ok {
		return OptString{}
	}
	return OptString{Value: strings.TrimSpace(s), Valid: true}
}

// normalizeAlphanumeric uppercases and deletes every run of non
// [A-Z0-9] characters. Never returns absent. Applying it twice equals
// applying it once, and the output only ever contains [A-Z0-9].
func normalizeAlphanumeric(raw any) string {
	return reNotAlphanum.ReplaceAllString(strings.ToUpper(trimString(raw)), "")
}

// normalizeInt coerces a truthy raw value to an integer; absent, empty, or
// zero/false-like input normalizes to absent, matching the source's
// `int(value) if value else None` behavior.
func normalizeInt(field string, raw any) (OptInt, error) {
	if !isTruthy(raw) {
		return OptInt{}, nil
	}
	n, err := asInt(raw)
	if err != nil {
		return OptInt{}, &MalformedField{Field: field, RawValue: raw}
	}
	return OptInt{Value: n, Valid: true}, nil
}

// normalizeFloat parses a present value as a double, returning absent for
// nil/missing input and MalformedField for an unparseable present one.
func normalizeFloat(field string, raw any) (OptFloat, error) {
	if raw == nil {
		return OptFloat{}, nil
	}
	f, ok := asFloat(raw)
	if !ok {
		return OptFloat{}, &MalformedField{Field: field, RawValue: raw}
	}
	return OptFloat{Value: f, Valid: true}, nil
}

// normalizeRecordedByIDs reduces a sequence of {"type", "value"} records to
// the set of distinct "value" strings. Missing input normalizes to the
// empty set, never to an absent sentinel.
func normalizeRecordedByIDs(raw any) (IDSet, error) {
	if raw == nil {
		return NewIDSet(), nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &MalformedField{Field: "recordedByIDs", RawValue: raw}
	}
	set := make(IDSet, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, &MalformedField{Field: "recordedByIDs", RawValue: raw}
		}
		v, ok := asString(rec["value"])
		if !ok {
			return nil, &MalformedField{Field: "recordedByIDs", RawValue: raw}
		}
		set[v] = struct{}{}
	}
	return set, nil
}

// normalizeElevationDepth jointly normalizes elevation and depth per
// spec §4.2: strip a leading "ca." from a stringly-typed elevation, treat
// an elevation below -6,000,000 as absent, then infer elevation from depth
// when elevation is absent or exactly zero and depth disagrees with it.
func normalizeElevationDepth(rawElevation, rawDepth any) (OptFloat, OptFloat, error) {
	var elevation, depth OptFloat

	if s, ok := rawElevation.(string); ok {
		rawElevation = strings.ReplaceAll(s, "ca.", "")
	}
	if rawElevation != nil {
		f, ok := asFloat(rawElevation)
		if !ok {
			return OptFloat{}, OptFloat{}, &MalformedField{Field: "elevation", RawValue: rawElevation}
		}
		if f >= -6000000 {
			elevation = OptFloat{Value: f, Valid: true}
		}
	}
	if rawDepth != nil {
		f, ok := asFloat(rawDepth)
		if !ok {
			return OptFloat{}, OptFloat{}, &MalformedField{Field: "depth", RawValue: rawDepth}
		}
		depth = OptFloat{Value: f, Valid: true}
	}

	if optFloatEqual(depth, elevation) {
		return elevation, depth, nil
	}
	if depth.Valid && (!elevation.Valid || (depth.Value != 0 && elevation.Value == 0)) {
		elevation = OptFloat{Value: -depth.Value, Valid: true}
	}
	return elevation, depth, nil
}

func optFloatEqual(a, b OptFloat) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Value == b.Value
}

// normalizeYearMonthDay jointly normalizes the date triple: an absent year
// forces month and day absent; an absent month forces day absent.
func normalizeYearMonthDay(rawYear, rawMonth, rawDay any) (OptInt, OptInt, OptInt, error) {
	year, err := normalizeInt("year", rawYear)
	if err != nil {
		return OptInt{}, OptInt{}, OptInt{}, err
	}
	if !year.Valid {
		return OptInt{}, OptInt{}, OptInt{}, nil
	}
	month, err := normalizeInt("month", rawMonth)
	if err != nil {
		return OptInt{}, OptInt{}, OptInt{}, err
	}
	if !month.Valid {
		return year, OptInt{}, OptInt{}, nil
	}
	day, err := normalizeInt("day", rawDay)
	if err != nil {
		return OptInt{}, OptInt{}, OptInt{}, err
	}
	return year, month, day, nil
}

// normalizeLatLon jointly normalizes a coordinate pair: either side absent
// forces both absent, and the sentinel pairs (0,0) and (360,360) (known
// GBIF placeholders for "unknown location") normalize to absent too.
func normalizeLatLon(rawLat, rawLon any) (OptFloat, OptFloat, error) {
	if rawLat == nil || rawLon == nil {
		return OptFloat{}, OptFloat{}, nil
	}
	lat, ok := asFloat(rawLat)
	if !ok {
		return OptFloat{}, OptFloat{}, &MalformedField{Field: "decimalLatitude", RawValue: rawLat}
	}
	lon, ok := asFloat(rawLon)
	if !ok {
		return OptFloat{}, OptFloat{}, &MalformedField{Field: "decimalLongitude", RawValue: rawLon}
	}
	if (lat == 0 && lon == 0) || (lat == 360 && lon == 360) {
		return OptFloat{}, OptFloat{}, nil
	}
	return OptFloat{Value: lat, Valid: true}, OptFloat{Value: lon, Valid: true}, nil
}

// Normalize applies the Field Registry's normalizers to a raw occurrence,
// producing a NormalizedOccurrence. It returns the first MalformedField
// encountered (spec §7 class 2); callers that want every malformed field
// reported should pre-validate individually.
func Normalize(occ Occurrence) (NormalizedOccurrence, error) {
	var n NormalizedOccurrence
	var err error

	n.TypeStatus = trimString(occ["typeStatus"])
	n.BasisOfRecord = trimString(occ["basisOfRecord"])
	n.RecordedBy = trimString(occ["recordedBy"])
	n.RecordNumber = trimString(occ["recordNumber"])
	n.CollectionCode = normalizeAlphanumeric(occ["collectionCode"])
	n.CatalogNumber = normalizeAlphanumeric(occ["catalogNumber"])
	n.Family = trimString(occ["family"])
	n.Genus = trimString(occ["genus"])
	n.SpecificEpithet = trimString(occ["specificEpithet"])
	n.Country = trimString(occ["country"])
	n.City = trimStringOrAbsent(occ["city"])
	n.Locality = trimStringOrAbsent(occ["locality"])

	if n.RecordedByIDs, err = normalizeRecordedByIDs(occ["recordedByIDs"]); err != nil {
		return NormalizedOccurrence{}, err
	}
	if n.IndividualCount, err = normalizeInt("individualCount", occ["individualCount"]); err != nil {
		return NormalizedOccurrence{}, err
	}
	if n.Elevation, n.Depth, err = normalizeElevationDepth(occ["elevation"], occ["depth"]); err != nil {
		return NormalizedOccurrence{}, err
	}
	if n.Year, n.Month, n.Day, err = normalizeYearMonthDay(occ["year"], occ["month"], occ["day"]); err != nil {
		return NormalizedOccurrence{}, err
	}
	if n.DecimalLatitude, n.DecimalLongitude, err = normalizeLatLon(occ["decimalLatitude"], occ["decimalLongitude"]); err != nil {
		return NormalizedOccurrence{}, err
	}

	n.Extra = extraFields(occ)
	return n, nil
}

var registeredFields = map[string]bool{
	"typeStatus": true, "basisOfRecord": true, "recordedBy": true,
	"recordNumber": true, "recordedByIDs": true, "collectionCode": true,
	"catalogNumber": true, "individualCount": true, "family": true,
	"genus": true, "specificEpithet": true, "country": true, "city": true,
	"locality": true, "elevation": true, "depth": true, "year": true,
	"month": true, "day": true, "decimalLatitude": true, "decimalLongitude": true,
}

func extraFields(occ Occurrence) map[string]any {
	extra := make(map[string]any, len(occ))
	for k, v := range occ {
		if !registeredFields[k] {
			extra[k] = v
		}
	}
	return extra
}

func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	default:
		return "", false
	}
}

func isTruthy(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case bool:
		return v
	default:
		return true
	}
}

func asInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if ferr != nil {
				return 0, err
			}
			return int(f), nil
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to int", raw)
	}
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
