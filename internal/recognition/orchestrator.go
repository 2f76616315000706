package recognition

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/vineethbhatalevoor/artvista/internal/classifier"
)

// Source identifies which classifier produced a prediction.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Prediction is the final classification result for one capture.
type Prediction struct {
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
	Source Source  `json:"source"`
}

// PredictionUnavailableError reports that both classifiers were
// exhausted without producing a candidate.
type PredictionUnavailableError struct {
	Err error
}

func (e *PredictionUnavailableError) Error() string {
	return fmt.Sprintf("prediction unavailable: %v", e.Err)
}

func (e *PredictionUnavailableError) Unwrap() error {
	return e.Err
}

// Tracker receives the predicted label after every successful
// prediction so viewing time stays attributed to the right item.
type Tracker interface {
	StartViewing(item string)
}

// Orchestrator selects a classifier for each capture, normalizes its
// output, and falls back from remote to local on failure.
type Orchestrator struct {
	remote  classifier.Classifier
	local   classifier.Classifier
	tracker Tracker
}

func NewOrchestrator(remote, local classifier.Classifier, tracker Tracker) *Orchestrator {
	return &Orchestrator{
		remote:  remote,
		local:   local,
		tracker: tracker,
	}
}

// Predict classifies one frame. When online it asks the remote
// classifier first and applies the artwork re-weighting pass to its
// output; any remote failure, or being offline, routes the frame to the
// local model instead. Only exhaustion of both classifiers is an error.
func (o *Orchestrator) Predict(ctx context.Context, frame image.Image, online bool) (Prediction, error) {
	var remoteErr error
	if online && o.remote != nil {
		labels, err := o.remote.Classify(ctx, frame)
		if err == nil && len(labels) > 0 {
			ranked := ReweightArtwork(labels)
			top := ranked[0]
			prediction := Prediction{
				Label:  top.Description,
				Score:  top.Score,
				Source: SourceRemote,
			}
			o.recordView(prediction.Label)
			return prediction, nil
		}
		if err != nil {
			remoteErr = err
			log.Printf("[PREDICT] Remote classifier failed, falling back to local model: %v", err)
		}
	}

	if o.local == nil {
		return Prediction{}, unavailable(fmt.Errorf("no local classifier configured"), remoteErr)
	}

	labels, err := o.local.Classify(ctx, frame)
	if err != nil {
		return Prediction{}, unavailable(err, remoteErr)
	}
	if len(labels) == 0 {
		return Prediction{}, unavailable(&classifier.EmptyResultError{}, remoteErr)
	}

	top := labels[0]
	prediction := Prediction{
		Label:  top.Description,
		Score:  top.Score,
		Source: SourceLocal,
	}
	o.recordView(prediction.Label)
	return prediction, nil
}

func (o *Orchestrator) recordView(label string) {
	if o.tracker != nil {
		o.tracker.StartViewing(label)
	}
}

// unavailable wraps the local failure, keeping the remote failure that
// triggered the fallback in the message.
func unavailable(localErr, remoteErr error) *PredictionUnavailableError {
	if remoteErr != nil {
		localErr = fmt.Errorf("%w (after remote failure: %v)", localErr, remoteErr)
	}
	return &PredictionUnavailableError{Err: localErr}
}
