package matching

import (
	"math"
	"strings"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/unicode/norm"
)

// Calibration constants for the decay scorers, colocated here per spec §9's
// open question so a future calibration pass can tune them without touching
// the scoring logic itself.
const (
	// dateDecayScale makes a 1 day distance score ~0.905, 7 days ~0.497, 15
	// days ~0.223.
	dateDecayScale = 10.0
	// haversineDecayScale makes coordinates ~100km apart score ~0.2.
	haversineDecayScale = 100.0
)

// scoreExact implements the "exact (case-insensitive)" scorer: undefined if
// either side is empty, else 1 if the uppercased values are equal, else 0.
func scoreExact(subject, related string) Score {
	if subject == "" || related == "" {
		return Undefined
	}
	if strings.EqualFold(subject, related) {
		return Defined(1)
	}
	return Defined(0)
}

// scoreExactOrInclude implements the "exact-or-include" scorer, symmetric
// by construction: 1 if equal, 0.8 if one is a substring of the other
// (accounts for composite catalog numbers enumerating multiple specimens),
// else 0.
func scoreExactOrInclude(subject, related string) Score {
	if subject == "" || related == "" {
		return Undefined
	}
	s, r := strings.ToUpper(subject), strings.ToUpper(related)
	if s == r {
		return Defined(1)
	}
	if strings.Contains(r, s) || strings.Contains(s, r) {
		return Defined(0.8)
	}
	return Defined(0)
}

// scoreJaroWinkler implements the Jaro-Winkler scorer using the standard
// prefix weighting constants (scaling factor 0.1, maximum prefix length 4),
// as provided by matchr.JaroWinkler with longTolerance disabled. Free-text
// values are NFKC-normalized first so visually-equivalent Unicode variants
// don't depress the score.
func scoreJaroWinkler(subject, related string) Score {
	if subject == "" || related == "" {
		return Undefined
	}
	s := norm.NFKC.String(subject)
	r := norm.NFKC.String(related)
	return Defined(matchr.JaroWinkler(s, r, false))
}

// scoreNumericRatio implements the "numeric ratio" scorer: undefined if
// either side is absent, 1 if both are zero, else `1 - |r-s| / max(|s|, |r|)`.
func scoreNumericRatio(subject, related OptFloat) Score {
	if !subject.Valid {
		return Undefined
	}
	if !related.Valid {
		return Undefined
	}
	maxAbs := math.Max(math.Abs(subject.Value), math.Abs(related.Value))
	if maxAbs == 0 {
		return Defined(1)
	}
	return Defined(1 - math.Abs(related.Value-subject.Value)/maxAbs)
}

// scoreSetIntersection implements "set-intersection non-empty": 1 if the
// two sets share a member, else 0. An empty set (missing recordedByIDs)
// scores 0, not undefined, per spec §4.3 and §9's flagged open question —
// preserved as the source behaves, even though it penalizes two records
// that both lack the field.
func scoreSetIntersection(subject, related IDSet) Score {
	if subject.Intersects(related) {
		return Defined(1)
	}
	return Defined(0)
}

// occurrenceOrdinal returns the proleptic Gregorian ordinal day count for a
// date, substituting month=6/day=15 for missing components, or false if
// year itself is absent.
func occurrenceOrdinal(year, month, day OptInt) (int, bool) {
	if !year.Valid {
		return 0, false
	}
	m := 6
	if month.Valid {
		m = month.Value
	}
	d := 15
	if day.Valid {
		d = day.Value
	}
	return dateToOrdinal(year.Value, m, d), true
}

// scoreDateDecay implements the "date decay" scorer: exp(-|Δdays|/scale)
// when both sides resolve to an ordinal day count, else undefined.
func scoreDateDecay(subjectYear, subjectMonth, subjectDay, relatedYear, relatedMonth, relatedDay OptInt) Score {
	subjectOrdinal, ok1 := occurrenceOrdinal(subjectYear, subjectMonth, subjectDay)
	relatedOrdinal, ok2 := occurrenceOrdinal(relatedYear, relatedMonth, relatedDay)
	if !ok1 || !ok2 {
		return Undefined
	}
	delta := math.Abs(float64(subjectOrdinal - relatedOrdinal))
	return Defined(math.Exp(-delta / dateDecayScale))
}

// scoreHaversineDecay implements the "Haversine decay" scorer: undefined if
// either coordinate pair is absent, otherwise exp(-scale * centralAngle)
// where centralAngle is the great-circle distance in radians. Domain
// errors in the square root (from floating-point rounding driving h
// outside [0,1]) return undefined rather than a clamped, slightly-wrong score.
func scoreHaversineDecay(subjectLat, subjectLon, relatedLat, relatedLon OptFloat) Score {
	if !subjectLat.Valid || !subjectLon.Valid || !relatedLat.Valid || !relatedLon.Valid {
		return Undefined
	}
	phi1 := subjectLat.Value * math.Pi / 180
	phi2 := relatedLat.Value * math.Pi / 180
	dPhi := (relatedLat.Value - subjectLat.Value) * math.Pi / 180
	dLambda := (relatedLon.Value - subjectLon.Value) * math.Pi / 180

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)
	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda
	if h > 1 || h < 0 {
		// floating-point rounding pushed h outside asin's domain
		return Undefined
	}
	distance := 2 * math.Asin(math.Sqrt(h))
	return Defined(math.Exp(-haversineDecayScale * distance))
}

// scoreElevationDepth scores the joint elevation/depth group using the
// numeric ratio on elevation alone: normalizeElevationDepth already folded
// depth into elevation wherever it carries information.
func scoreElevationDepth(subjectElevation, relatedElevation OptFloat) Score {
	return scoreNumericRatio(subjectElevation, relatedElevation)
}
