package classifier

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

const (
	modelFile = "model.json"

	defaultInputHeight = 224
	defaultInputWidth  = 224
)

// DefaultLabels is the vocabulary used when the model descriptor does
// not declare one.
var DefaultLabels = []string{"Mona Lisa", "Starry Night", "The Scream"}

// ModelDescriptor is the input contract of a loaded model, resolved once
// at load time instead of probed per call.
type ModelDescriptor struct {
	InputHeight int
	InputWidth  int
	Labels      []string
}

type denseLayer struct {
	weights *mat.Dense // outputs x inputs
	bias    *mat.VecDense
}

// Model is an in-process image classification network: a stack of dense
// layers with ReLU activations between them and raw logits at the end.
type Model struct {
	descriptor ModelDescriptor
	layers     []denseLayer
}

func (m *Model) Descriptor() ModelDescriptor {
	return m.descriptor
}

// run executes the network over a flattened feature vector and returns
// the final logits. All intermediates are scoped to this call.
func (m *Model) run(features []float64) ([]float64, error) {
	if len(m.layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}

	x := mat.NewVecDense(len(features), features)
	for i, layer := range m.layers {
		rows, cols := layer.weights.Dims()
		if cols != x.Len() {
			return nil, fmt.Errorf("layer %d expects %d inputs, got %d", i, cols, x.Len())
		}

		y := mat.NewVecDense(rows, nil)
		y.MulVec(layer.weights, x)
		y.AddVec(y, layer.bias)

		if i < len(m.layers)-1 {
			for j := 0; j < rows; j++ {
				y.SetVec(j, math.Max(0, y.AtVec(j)))
			}
		}
		x = y
	}

	out := make([]float64, x.Len())
	copy(out, x.RawVector().Data)
	return out, nil
}

type modelDocument struct {
	Format      string          `json:"format"`
	InputHeight int             `json:"input_height"`
	InputWidth  int             `json:"input_width"`
	Labels      []string        `json:"labels"`
	Layers      []layerDocument `json:"layers"`
	WeightsFile string          `json:"weights_file"`
}

type layerDocument struct {
	Inputs  int    `json:"inputs"`
	Outputs int    `json:"outputs"`
	Weights string `json:"weights,omitempty"`
	Biases  string `json:"biases,omitempty"`
}

// LoadModel reads a model from dir, trying the graph representation
// (manifest plus external weights file) first and the layers
// representation (inline weights) second.
func LoadModel(dir string) (*Model, error) {
	model, graphErr := loadGraphModel(dir)
	if graphErr == nil {
		return model, nil
	}

	model, layersErr := loadLayersModel(dir)
	if layersErr == nil {
		return model, nil
	}

	return nil, fmt.Errorf("loading model: graph: %v; layers: %w", graphErr, layersErr)
}

func loadGraphModel(dir string) (*Model, error) {
	doc, err := readModelDocument(dir)
	if err != nil {
		return nil, err
	}
	if doc.WeightsFile == "" {
		return nil, fmt.Errorf("descriptor has no weights file")
	}

	raw, err := os.ReadFile(filepath.Join(dir, filepath.Base(doc.WeightsFile)))
	if err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}

	layers := make([]denseLayer, 0, len(doc.Layers))
	offset := 0
	for i, l := range doc.Layers {
		weights, n, err := decodeFloat32s(raw[offset:], l.Outputs*l.Inputs)
		if err != nil {
			return nil, fmt.Errorf("layer %d weights: %w", i, err)
		}
		offset += n

		bias, n, err := decodeFloat32s(raw[offset:], l.Outputs)
		if err != nil {
			return nil, fmt.Errorf("layer %d biases: %w", i, err)
		}
		offset += n

		layers = append(layers, denseLayer{
			weights: mat.NewDense(l.Outputs, l.Inputs, weights),
			bias:    mat.NewVecDense(l.Outputs, bias),
		})
	}

	return buildModel(doc, layers)
}

func loadLayersModel(dir string) (*Model, error) {
	doc, err := readModelDocument(dir)
	if err != nil {
		return nil, err
	}

	layers := make([]denseLayer, 0, len(doc.Layers))
	for i, l := range doc.Layers {
		if l.Weights == "" {
			return nil, fmt.Errorf("layer %d has no inline weights", i)
		}

		weights, err := decodeBase64Float32s(l.Weights, l.Outputs*l.Inputs)
		if err != nil {
			return nil, fmt.Errorf("layer %d weights: %w", i, err)
		}

		bias, err := decodeBase64Float32s(l.Biases, l.Outputs)
		if err != nil {
			return nil, fmt.Errorf("layer %d biases: %w", i, err)
		}

		layers = append(layers, denseLayer{
			weights: mat.NewDense(l.Outputs, l.Inputs, weights),
			bias:    mat.NewVecDense(l.Outputs, bias),
		})
	}

	return buildModel(doc, layers)
}

func readModelDocument(dir string) (*modelDocument, error) {
	data, err := os.ReadFile(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}

	var doc modelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}

	if len(doc.Layers) == 0 {
		return nil, fmt.Errorf("descriptor declares no layers")
	}
	return &doc, nil
}

func buildModel(doc *modelDocument, layers []denseLayer) (*Model, error) {
	descriptor := ModelDescriptor{
		InputHeight: doc.InputHeight,
		InputWidth:  doc.InputWidth,
		Labels:      doc.Labels,
	}
	if descriptor.InputHeight <= 0 {
		descriptor.InputHeight = defaultInputHeight
	}
	if descriptor.InputWidth <= 0 {
		descriptor.InputWidth = defaultInputWidth
	}
	if len(descriptor.Labels) == 0 {
		descriptor.Labels = DefaultLabels
	}

	wantInputs := descriptor.InputHeight * descriptor.InputWidth * 3
	if _, cols := layers[0].weights.Dims(); cols != wantInputs {
		return nil, fmt.Errorf("first layer expects %d inputs, descriptor implies %d",
			cols, wantInputs)
	}

	for i := 1; i < len(layers); i++ {
		prevRows, _ := layers[i-1].weights.Dims()
		_, cols := layers[i].weights.Dims()
		if cols != prevRows {
			return nil, fmt.Errorf("layer %d expects %d inputs, layer %d produces %d",
				i, cols, i-1, prevRows)
		}
	}

	return &Model{descriptor: descriptor, layers: layers}, nil
}

func decodeFloat32s(raw []byte, count int) ([]float64, int, error) {
	need := count * 4
	if len(raw) < need {
		return nil, 0, fmt.Errorf("want %d bytes, have %d", need, len(raw))
	}

	out := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		out[i] = float64(math.Float32frombits(bits))
	}
	return out, need, nil
}

func decodeBase64Float32s(encoded string, count int) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}
	if len(raw) != count*4 {
		return nil, fmt.Errorf("want %d bytes, have %d", count*4, len(raw))
	}

	out, _, err := decodeFloat32s(raw, count)
	return out, err
}
