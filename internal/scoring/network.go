package scoring

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Architecture is the layer layout of the quality network.
var Architecture = []int{FeatureCount, 128, 64, 32, 1}

type layer struct {
	weights *mat.Dense // in x out
	bias    []float64
}

// Network is a fully connected ReLU network with a sigmoid output unit.
// Inference never mutates it, so a loaded Network may be shared by goroutines.
type Network struct {
	sizes  []int
	layers []layer
}

// NewNetwork builds a network with He-initialised weights and zero biases.
func NewNetwork(sizes []int, rng *rand.Rand) *Network {
	n := &Network{sizes: append([]int(nil), sizes...)}
	for i := 0; i+1 < len(sizes); i++ {
		in, out := sizes[i], sizes[i+1]
		std := math.Sqrt(2 / float64(in))
		data := make([]float64, in*out)
		for j := range data {
			data[j] = rng.NormFloat64() * std
		}
		n.layers = append(n.layers, layer{
			weights: mat.NewDense(in, out, data),
			bias:    make([]float64, out),
		})
	}
	return n
}

// Sizes returns a copy of the layer sizes.
func (n *Network) Sizes() []int {
	return append([]int(nil), n.sizes...)
}

// Predict runs inference over a rows x FeatureCount matrix and returns one score per row.
func (n *Network) Predict(x mat.Matrix) []float64 {
	p := n.forward(x, nil)
	out := p.activations[len(p.activations)-1]
	rows, _ := out.Dims()
	scores := make([]float64, rows)
	for r := 0; r < rows; r++ {
		scores[r] = clamp01(out.At(r, 0))
	}
	return scores
}

func (n *Network) clone() *Network {
	c := &Network{sizes: n.Sizes(), layers: make([]layer, len(n.layers))}
	for i, l := range n.layers {
		c.layers[i] = layer{
			weights: mat.DenseCopyOf(l.weights),
			bias:    append([]float64(nil), l.bias...),
		}
	}
	return c
}

// pass keeps what backpropagation needs from a forward pass.
type pass struct {
	activations []mat.Matrix // input followed by every layer output
	pre         []*mat.Dense // pre-activation per layer
	masks       []*mat.Dense // dropout scale per hidden layer, nil when inactive
}

type dropout struct {
	rate float64
	rng  *rand.Rand
}

func (d *dropout) mask(rows, cols int) *mat.Dense {
	keep := 1 / (1 - d.rate)
	data := make([]float64, rows*cols)
	for i := range data {
		if d.rng.Float64() >= d.rate {
			data[i] = keep
		}
	}
	return mat.NewDense(rows, cols, data)
}

func (n *Network) forward(x mat.Matrix, drop *dropout) *pass {
	p := &pass{activations: []mat.Matrix{x}}
	last := len(n.layers) - 1
	a := x
	for i, l := range n.layers {
		bias := l.bias
		z := new(mat.Dense)
		z.Mul(a, l.weights)
		z.Apply(func(_, j int, v float64) float64 { return v + bias[j] }, z)

		out := new(mat.Dense)
		if i == last {
			out.Apply(func(_, _ int, v float64) float64 { return sigmoid(v) }, z)
		} else {
			out.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, z)
			var mask *mat.Dense
			if drop != nil && drop.rate > 0 {
				mask = drop.mask(out.Dims())
				out.MulElem(out, mask)
			}
			p.masks = append(p.masks, mask)
		}
		p.pre = append(p.pre, z)
		p.activations = append(p.activations, out)
		a = out
	}
	return p
}

type gradient struct {
	weights *mat.Dense
	bias    []float64
}

// backward returns gradients of the mean squared error plus an L2 penalty on
// hidden-layer weights.
func (n *Network) backward(p *pass, labels []float64, l2 float64) []gradient {
	last := len(n.layers) - 1
	out := p.activations[last+1]
	rows, _ := out.Dims()

	delta := mat.NewDense(rows, 1, nil)
	for r := 0; r < rows; r++ {
		pred := out.At(r, 0)
		delta.Set(r, 0, 2*(pred-labels[r])/float64(rows)*pred*(1-pred))
	}

	grads := make([]gradient, len(n.layers))
	for i := last; i >= 0; i-- {
		w := n.layers[i].weights

		dw := new(mat.Dense)
		dw.Mul(p.activations[i].T(), delta)
		if l2 > 0 && i < last {
			penalty := new(mat.Dense)
			penalty.Scale(l2, w)
			dw.Add(dw, penalty)
		}

		_, cols := delta.Dims()
		db := make([]float64, cols)
		for c := 0; c < cols; c++ {
			db[c] = mat.Sum(delta.ColView(c))
		}
		grads[i] = gradient{weights: dw, bias: db}

		if i == 0 {
			break
		}

		z := p.pre[i-1]
		mask := p.masks[i-1]
		prev := new(mat.Dense)
		prev.Mul(delta, w.T())
		prev.Apply(func(r, c int, v float64) float64 {
			if z.At(r, c) <= 0 {
				return 0
			}
			if mask != nil {
				return v * mask.At(r, c)
			}
			return v
		}, prev)
		delta = prev
	}
	return grads
}

// adam is the Adam optimiser state for one network.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	mw, vw                [][]float64
	mb, vb                [][]float64
}

func newAdam(n *Network, lr float64) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	for _, l := range n.layers {
		size := len(l.weights.RawMatrix().Data)
		a.mw = append(a.mw, make([]float64, size))
		a.vw = append(a.vw, make([]float64, size))
		a.mb = append(a.mb, make([]float64, len(l.bias)))
		a.vb = append(a.vb, make([]float64, len(l.bias)))
	}
	return a
}

func (a *adam) step(n *Network, grads []gradient) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, l := range n.layers {
		a.update(l.weights.RawMatrix().Data, grads[i].weights.RawMatrix().Data, a.mw[i], a.vw[i], c1, c2)
		a.update(l.bias, grads[i].bias, a.mb[i], a.vb[i], c1, c2)
	}
}

func (a *adam) update(params, grads, m, v []float64, c1, c2 float64) {
	for j, g := range grads {
		m[j] = a.beta1*m[j] + (1-a.beta1)*g
		v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
		params[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.eps)
	}
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
