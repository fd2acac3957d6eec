package matching

// registryEntry is one row of the Field Registry (spec §4.1): a name, its
// weight, and a closure evaluating its scorer against two normalized
// occurrences. Using a closure per entry keeps the table declarative
// (spec §9 "tagged variant per arity") without a sum type per field shape.
type registryEntry struct {
	name          string
	defaultWeight float64
	score         func(subject, related NormalizedOccurrence) Score
}

// weight returns this entry's effective weight: the calibration override if
// one is loaded, else the compiled-in default. Resolved per scoring call
// (not baked in at init) so a calibration file loaded after process start
// still takes effect.
func (e registryEntry) weight() float64 {
	return weightOf(e.name, e.defaultWeight)
}

// fieldRegistry enumerates exactly the entries of spec §4.1, in table
// order. It is a process-wide constant, built once and never mutated.
var fieldRegistry = []registryEntry{
	{"typeStatus", 2, func(s, r NormalizedOccurrence) Score {
		return scoreExact(s.TypeStatus, r.TypeStatus)
	}},
	{"basisOfRecord", 2, func(s, r NormalizedOccurrence) Score {
		return scoreExact(s.BasisOfRecord, r.BasisOfRecord)
	}},
	{"recordedBy", 2, func(s, r NormalizedOccurrence) Score {
		return scoreJaroWinkler(s.RecordedBy, r.RecordedBy)
	}},
	{"recordNumber", 2, func(s, r NormalizedOccurrence) Score {
		return scoreExact(s.RecordNumber, r.RecordNumber)
	}},
	{"recordedByIDs", 2, func(s, r NormalizedOccurrence) Score {
		return scoreSetIntersection(s.RecordedByIDs, r.RecordedByIDs)
	}},
	{"collectionCode", 2, func(s, r NormalizedOccurrence) Score {
		return scoreExactOrInclude(s.CollectionCode, r.CollectionCode)
	}},
	{"catalogNumber", 2, func(s, r NormalizedOccurrence) Score {
		return scoreExactOrInclude(s.CatalogNumber, r.CatalogNumber)
	}},
	{"individualCount", 1, func(s, r NormalizedOccurrence) Score {
		return scoreNumericRatio(optFloatFromInt(s.IndividualCount), optFloatFromInt(r.IndividualCount))
	}},
	{"family", 1, func(s, r NormalizedOccurrence) Score {
		return scoreJaroWinkler(s.Family, r.Family)
	}},
	{"genus", 1, func(s, r NormalizedOccurrence) Score {
		return scoreJaroWinkler(s.Genus, r.Genus)
	}},
	{"specificEpithet", 1, func(s, r NormalizedOccurrence) Score {
		return scoreJaroWinkler(s.SpecificEpithet, r.SpecificEpithet)
	}},
	{"country", 1, func(s, r NormalizedOccurrence) Score {
		return scoreExact(s.Country, r.Country)
	}},
	{"city", 1, func(s, r NormalizedOccurrence) Score {
		return scoreJaroWinkler(optStringValue(s.City), optStringValue(r.City))
	}},
	{"locality", 0.5, func(s, r NormalizedOccurrence) Score {
		return scoreJaroWinkler(optStringValue(s.Locality), optStringValue(r.Locality))
	}},
	{"elevation", 1, func(s, r NormalizedOccurrence) Score {
		return scoreElevationDepth(s.Elevation, r.Elevation)
	}},
	{"year", 1, func(s, r NormalizedOccurrence) Score {
		return scoreDateDecay(s.Year, s.Month, s.Day, r.Year, r.Month, r.Day)
	}},
	{"decimalLatitude", 2, func(s, r NormalizedOccurrence) Score {
		return scoreHaversineDecay(s.DecimalLatitude, s.DecimalLongitude, r.DecimalLatitude, r.DecimalLongitude)
	}},
}

// optFloatFromInt lifts an OptInt into an OptFloat so it can feed the
// shared numeric-ratio scorer.
func optFloatFromInt(v OptInt) OptFloat {
	if !v.Valid {
		return OptFloat{}
	}
	return OptFloat{Value: float64(v.Value), Valid: true}
}

// optStringValue unwraps an OptString to a plain string; an absent value
// scores the same as an empty one under scoreJaroWinkler (both yield
// undefined), so the distinction this type otherwise preserves doesn't
// matter at the scorer boundary.
func optStringValue(v OptString) string {
	return v.Value
}
