package recognition

import (
	"math"
	"sort"
	"strings"

	"github.com/vineethbhatalevoor/artvista/internal/classifier"
)

// artworkBoost is applied to labels that look art-related so the
// recognizer prefers the artwork over incidental scene content.
const artworkBoost = 1.2

var artworkKeywords = []string{
	"mona lisa",
	"starry night",
	"the scream",
	"painting",
	"artwork",
	"canvas",
	"museum",
	"art",
}

// ReweightArtwork boosts art-related labels by artworkBoost (capped at
// 1.0) and re-sorts descending. The sort is stable: equal scores keep
// the detector's original order. The input slice is not modified.
func ReweightArtwork(labels []classifier.RankedLabel) []classifier.RankedLabel {
	out := make([]classifier.RankedLabel, len(labels))
	copy(out, labels)

	for i := range out {
		if IsArtworkLabel(out[i].Description) {
			out[i].Score = math.Min(1.0, out[i].Score*artworkBoost)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out
}

// IsArtworkLabel reports whether the label text matches any of the
// artwork keywords as a substring, case-insensitively.
func IsArtworkLabel(description string) bool {
	desc := strings.ToLower(description)
	for _, keyword := range artworkKeywords {
		if strings.Contains(desc, keyword) {
			return true
		}
	}
	return false
}
