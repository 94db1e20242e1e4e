package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/noah-isme/schedule-quality-api/internal/models"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

// ModelFormatVersion is bumped whenever the weight document layout changes.
const ModelFormatVersion = 1

type modelDocument struct {
	Version      int                  `json:"version"`
	Architecture []int                `json:"architecture"`
	Features     []string             `json:"features"`
	Layers       []layerDocument      `json:"layers"`
	Metrics      *models.ModelMetrics `json:"metrics,omitempty"`
	SavedAt      time.Time            `json:"savedAt"`
}

type layerDocument struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
}

// EncodeModel serialises network weights (row-major) with their metrics.
func EncodeModel(n *Network, metrics *models.ModelMetrics) ([]byte, error) {
	if n == nil {
		return nil, appErrors.Clone(appErrors.ErrModelUnavailable, "no network to encode")
	}
	doc := modelDocument{
		Version:      ModelFormatVersion,
		Architecture: n.Sizes(),
		Features:     FeatureNames(),
		Metrics:      metrics,
		SavedAt:      time.Now().UTC(),
	}
	for _, l := range n.layers {
		rows, cols := l.weights.Dims()
		doc.Layers = append(doc.Layers, layerDocument{
			Rows:    rows,
			Cols:    cols,
			Weights: mat.DenseCopyOf(l.weights).RawMatrix().Data,
			Bias:    append([]float64(nil), l.bias...),
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeModel parses a weight document and rejects anything that does not fit Architecture.
func DecodeModel(data []byte) (*Network, *models.ModelMetrics, error) {
	var doc modelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrIncompatibleModel.Code, appErrors.ErrIncompatibleModel.Status, "model file is not valid JSON")
	}
	if doc.Version != ModelFormatVersion {
		return nil, nil, appErrors.Clone(appErrors.ErrIncompatibleModel, fmt.Sprintf("unsupported model version %d", doc.Version))
	}
	if !sameSizes(doc.Architecture, Architecture) {
		return nil, nil, appErrors.Clone(appErrors.ErrIncompatibleModel, fmt.Sprintf("unexpected architecture %v", doc.Architecture))
	}
	if len(doc.Layers) != len(Architecture)-1 {
		return nil, nil, appErrors.Clone(appErrors.ErrIncompatibleModel, fmt.Sprintf("expected %d layers, got %d", len(Architecture)-1, len(doc.Layers)))
	}

	n := &Network{sizes: append([]int(nil), Architecture...)}
	for i, ld := range doc.Layers {
		in, out := Architecture[i], Architecture[i+1]
		if ld.Rows != in || ld.Cols != out || len(ld.Weights) != in*out || len(ld.Bias) != out {
			return nil, nil, appErrors.Clone(appErrors.ErrIncompatibleModel, fmt.Sprintf("layer %d has wrong shape", i))
		}
		if !allFinite(ld.Weights) || !allFinite(ld.Bias) {
			return nil, nil, appErrors.Clone(appErrors.ErrIncompatibleModel, fmt.Sprintf("layer %d contains non-finite values", i))
		}
		n.layers = append(n.layers, layer{
			weights: mat.NewDense(in, out, append([]float64(nil), ld.Weights...)),
			bias:    append([]float64(nil), ld.Bias...),
		})
	}
	return n, doc.Metrics, nil
}

func sameSizes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
