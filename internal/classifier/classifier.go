package classifier

import (
	"context"
	"image"
)

// MaxResults bounds the number of candidates either classifier returns.
const MaxResults = 10

// Kind distinguishes generic label annotations from localized objects.
type Kind string

const (
	KindLabel  Kind = "label"
	KindObject Kind = "object"
)

// RankedLabel is a single classifier candidate. Scores from both
// classifiers are normalized to [0,1] so they are comparable.
type RankedLabel struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Kind        Kind    `json:"type"`
}

// Classifier produces a ranked candidate list for one captured frame,
// ordered descending by score. The list may be empty only alongside an
// error; a frame is never retained past the call that produced it.
type Classifier interface {
	Classify(ctx context.Context, frame image.Image) ([]RankedLabel, error)
}
