package rank

import (
	"math"
	"sort"
)

// OutOf10 maps a [-1, 1] score onto the 0-10 scale used in tables and
// alerts.
func OutOf10(score float64) int {
	return int(math.Round((clip(score, -1, 1) + 1) * 5))
}

// PrivacyOutOf10 maps a [0, 1] privacy score onto 0-10.
func PrivacyOutOf10(score float64) int {
	return int(math.Round(clip(score, 0, 1) * 10))
}

// SortByRating orders rows for presentation: best overall first, then
// perception, then privacy, comparing on the rounded 0-10 scale the
// reader sees. Tool name breaks remaining ties.
func SortByRating(rows []Aggregate) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if oa, ob := OutOf10(a.Overall), OutOf10(b.Overall); oa != ob {
			return oa > ob
		}
		if pa, pb := OutOf10(a.Perception), OutOf10(b.Perception); pa != pb {
			return pa > pb
		}
		if va, vb := PrivacyOutOf10(a.PrivacyScore), PrivacyOutOf10(b.PrivacyScore); va != vb {
			return va > vb
		}
		return a.Tool < b.Tool
	})
}

// Mood is a compact qualitative read of an overall score.
func Mood(overall float64) string {
	switch {
	case overall > 0.2:
		return "positive"
	case overall < -0.2:
		return "negative"
	default:
		return "mixed"
	}
}
