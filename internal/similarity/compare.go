package similarity

import (
	"fmt"
	"math"
)

// HashDistanceNormalization scales the bit distance into a percentage penalty.
// It does not depend on the fingerprint bit length; every distance
// above 100 bits floors the hash score at 0.
// TODO: revisit once we have enough stored pairs to tune against the 64 bit default.
const HashDistanceNormalization = 100.0

// Signals are the three precomputed similarity inputs of one image.
type Signals struct {
	Fingerprint    *Fingerprint
	ColorSignature []int
	ObjectLabels   []string
}

// MatchResult holds the per-axis scores and their combination, all percentages in [0,100].
type MatchResult struct {
	HashScore     int `json:"hash_score"`
	ColorScore    int `json:"color_score"`
	ObjectScore   int `json:"object_score"`
	CombinedScore int `json:"combined_score"`
}

// PerfectMatch is reported when there is nothing to compare against.
var PerfectMatch = MatchResult{HashScore: 100, ColorScore: 100, ObjectScore: 100, CombinedScore: 100}

// HashScore converts a bit distance into a percentage.
func HashScore(distance int) float64 {
	return math.Max(0, 100-(float64(distance)/HashDistanceNormalization)*100)
}

// ColorScore averages the per-bucket similarity 1-|a-b|/max(a+b,1) and returns it as a
// percentage with two decimals. Signatures of different length score 0; two empty
// signatures are identical and score 100.
func ColorScore(a, b []int) float64 {
	if len(a) != len(b) {
		return 0
	}
	if len(a) == 0 {
		return 100
	}
	var sum float64
	for i := range a {
		diff := math.Abs(float64(a[i] - b[i]))
		denom := math.Max(float64(a[i]+b[i]), 1)
		sum += 1 - diff/denom
	}
	return roundTo2(sum / float64(len(a)) * 100)
}

// ObjectScore is the Jaccard similarity of two label sets as a percentage with two decimals.
// Two empty sets are a perfect match.
func ObjectScore(a, b []string) float64 {
	left := toSet(a)
	right := toSet(b)

	union := make(map[string]struct{}, len(left)+len(right))
	for label := range left {
		union[label] = struct{}{}
	}
	for label := range right {
		union[label] = struct{}{}
	}
	if len(union) == 0 {
		return 100
	}

	common := 0
	for label := range left {
		if _, ok := right[label]; ok {
			common++
		}
	}
	return roundTo2(float64(common) / float64(len(union)) * 100)
}

// CombinedScore is the unweighted mean of the three axis scores rounded to an integer,
// half to even.
func CombinedScore(hash, color, object float64) int {
	return int(math.RoundToEven((hash + color + object) / 3))
}

// Compare scores a candidate against one stored image.
func Compare(candidate, stored Signals) (MatchResult, error) {
	distance, err := BitDistance(candidate.Fingerprint, stored.Fingerprint)
	if err != nil {
		return MatchResult{}, fmt.Errorf("failed to compare fingerprints: %w", err)
	}

	hash := HashScore(distance)
	color := ColorScore(candidate.ColorSignature, stored.ColorSignature)
	object := ObjectScore(candidate.ObjectLabels, stored.ObjectLabels)

	return MatchResult{
		HashScore:     int(math.RoundToEven(hash)),
		ColorScore:    int(math.RoundToEven(color)),
		ObjectScore:   int(math.RoundToEven(object)),
		CombinedScore: CombinedScore(hash, color, object),
	}, nil
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		set[label] = struct{}{}
	}
	return set
}
