package classifier

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"sort"
	"sync"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"
)

// LocalClassifier runs an in-process classification model over a frame.
// The model is loaded once from disk and cached for the process
// lifetime; repeated Classify calls share it.
type LocalClassifier struct {
	dir string

	mu    sync.Mutex
	model *Model
}

func NewLocalClassifier(dir string) *LocalClassifier {
	return &LocalClassifier{dir: dir}
}

// Load reads and caches the model. Safe to call more than once; a
// cached model is reused.
func (c *LocalClassifier) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model != nil {
		return nil
	}

	model, err := LoadModel(c.dir)
	if err != nil {
		return err
	}

	c.model = model
	desc := model.Descriptor()
	log.Printf("[MODEL] Loaded local model from %s (input %dx%d, %d labels)",
		c.dir, desc.InputWidth, desc.InputHeight, len(desc.Labels))
	return nil
}

func (c *LocalClassifier) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model != nil
}

func (c *LocalClassifier) cached() *Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

func (c *LocalClassifier) Classify(ctx context.Context, frame image.Image) ([]RankedLabel, error) {
	model := c.cached()
	if model == nil {
		return nil, &ModelNotLoadedError{}
	}

	if err := ctx.Err(); err != nil {
		return nil, &InferenceError{Err: err}
	}

	desc := model.Descriptor()
	features, err := featureVector(frame, desc.InputWidth, desc.InputHeight)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}

	logits, err := model.run(features)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}

	probs := softmax(logits)

	labels := make([]RankedLabel, 0, len(probs))
	for i, p := range probs {
		labels = append(labels, RankedLabel{
			Description: labelName(desc.Labels, i),
			Score:       p,
			Kind:        KindLabel,
		})
	}

	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Score > labels[j].Score
	})

	if len(labels) > MaxResults {
		labels = labels[:MaxResults]
	}

	return labels, nil
}

// featureVector resizes the frame to the model input resolution and
// flattens it to RGB samples in [0,1].
func featureVector(frame image.Image, width, height int) ([]float64, error) {
	if frame == nil {
		return nil, fmt.Errorf("nil frame")
	}
	bounds := frame.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("empty frame %dx%d", bounds.Dx(), bounds.Dy())
	}

	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(resized, resized.Bounds(), frame, bounds, xdraw.Src, nil)

	features := make([]float64, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := resized.PixOffset(x, y)
			features = append(features,
				float64(resized.Pix[offset])/255.0,
				float64(resized.Pix[offset+1])/255.0,
				float64(resized.Pix[offset+2])/255.0,
			)
		}
	}
	return features, nil
}

// softmax converts raw logits to probabilities, shifting by the max
// logit so large values cannot overflow.
func softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}

	max := floats.Max(logits)
	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func labelName(labels []string, index int) string {
	if index >= 0 && index < len(labels) {
		return labels[index]
	}
	return fmt.Sprintf("class-%d", index)
}
