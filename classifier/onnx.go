package classifier

import (
	"fmt"

	"github.com/Tutortoise/voice-screening-service/models"
	ort "github.com/yalue/onnxruntime_go"
)

// modelLayout names the tensors of an exported classifier. Converters such as
// skl2onnx emit an int64 "label" output and, for models with predict_proba, a
// float "probabilities" output shaped [N, classes].
type modelLayout struct {
	input         string
	label         string
	labelShape    ort.Shape
	probabilities string
	classes       int64
}

func (l modelLayout) hasProbabilities() bool {
	return l.probabilities != ""
}

// inspectModel reads the input and output metadata of the model at path.
// Outputs that are not int64 or float tensors (a ZipMap, for example) are
// ignored.
func inspectModel(path string) (modelLayout, error) {
	var layout modelLayout

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return layout, fmt.Errorf("getting model info: %w", err)
	}

	if len(inputs) != 1 {
		return layout, fmt.Errorf("expected 1 model input, found %d", len(inputs))
	}
	in := inputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return layout, fmt.Errorf("input %q must be float32", in.Name)
	}
	if n := len(in.Dimensions); n > 0 {
		if width := in.Dimensions[n-1]; width > 0 && width != models.FeatureCount {
			return layout, fmt.Errorf("input %q expects %d features, extractor produces %d",
				in.Name, width, models.FeatureCount)
		}
	}
	layout.input = in.Name

	for _, out := range outputs {
		switch out.DataType {
		case ort.TensorElementDataTypeInt64:
			if layout.label == "" || out.Name == "label" {
				layout.label = out.Name
				layout.labelShape = concreteShape(out.Dimensions, 1)
			}
		case ort.TensorElementDataTypeFloat:
			if layout.probabilities == "" || out.Name == "probabilities" {
				layout.probabilities = out.Name
				layout.classes = 2
				if n := len(out.Dimensions); n > 0 && out.Dimensions[n-1] > 0 {
					layout.classes = out.Dimensions[n-1]
				}
			}
		}
	}

	if layout.label == "" {
		return layout, fmt.Errorf("model has no int64 label output")
	}
	return layout, nil
}

// concreteShape replaces dynamic dimensions with fallback. A rank-0 shape
// becomes [fallback].
func concreteShape(dims ort.Shape, fallback int64) ort.Shape {
	if len(dims) == 0 {
		return ort.NewShape(fallback)
	}
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = fallback
		}
		shape[i] = d
	}
	return shape
}

// ModelSession is one ONNX Runtime session with its bound tensors. It is not
// safe for concurrent use; the pool hands each session to one caller at a
// time.
type ModelSession struct {
	Session       *ort.AdvancedSession
	Input         *ort.Tensor[float32]
	Label         *ort.Tensor[int64]
	Probabilities *ort.Tensor[float32]
}

func newModelSession(modelPath string, layout modelLayout, threads int) (*ModelSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if threads > 0 {
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			return nil, fmt.Errorf("error setting thread count: %w", err)
		}
		if err := options.SetInterOpNumThreads(1); err != nil {
			return nil, fmt.Errorf("error setting thread count: %w", err)
		}
	}

	m := &ModelSession{}

	m.Input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, models.FeatureCount))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	m.Label, err = ort.NewEmptyTensor[int64](layout.labelShape)
	if err != nil {
		m.Destroy()
		return nil, fmt.Errorf("error creating label tensor: %w", err)
	}
	outputNames := []string{layout.label}
	outputs := []ort.ArbitraryTensor{m.Label}

	if layout.hasProbabilities() {
		m.Probabilities, err = ort.NewEmptyTensor[float32](ort.NewShape(1, layout.classes))
		if err != nil {
			m.Destroy()
			return nil, fmt.Errorf("error creating probability tensor: %w", err)
		}
		outputNames = append(outputNames, layout.probabilities)
		outputs = append(outputs, m.Probabilities)
	}

	m.Session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{layout.input},
		outputNames,
		[]ort.ArbitraryTensor{m.Input},
		outputs,
		options,
	)
	if err != nil {
		m.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return m, nil
}

// Run feeds v through the model.
func (m *ModelSession) Run(v models.FeatureVector) (Prediction, error) {
	copy(m.Input.GetData(), v.Float32())

	if err := m.Session.Run(); err != nil {
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}

	labels := m.Label.GetData()
	if len(labels) == 0 {
		return Prediction{}, fmt.Errorf("model returned no label")
	}
	pred := Prediction{Label: labels[0]}

	if m.Probabilities != nil {
		raw := m.Probabilities.GetData()
		pred.Probabilities = make([]float64, len(raw))
		for i, p := range raw {
			pred.Probabilities[i] = float64(p)
		}
	}
	return pred, nil
}

func (m *ModelSession) Destroy() {
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	if m.Label != nil {
		m.Label.Destroy()
	}
	if m.Probabilities != nil {
		m.Probabilities.Destroy()
	}
}
