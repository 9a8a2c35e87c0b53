// Package tensor implements dense real tensors in row-major layout,
// together with the contractions and factorizations used by the MPS algorithms.
package tensor

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Dense is a dense tensor of float64 elements stored in row-major order.
type Dense struct {
	shape []int
	data  []float64
}

// Zeros returns a tensor of the given shape filled with zeros.
// A tensor with no shape is a scalar.
func Zeros(shape ...int) *Dense {
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("%#v", shape))
		}
	}
	return &Dense{shape: slices.Clone(shape), data: make([]float64, volume(shape))}
}

// New wraps data in a tensor of the given shape without copying.
func New(data []float64, shape ...int) *Dense {
	if len(data) != volume(shape) {
		panic(fmt.Sprintf("%d %#v", len(data), shape))
	}
	return &Dense{shape: slices.Clone(shape), data: data}
}

// Ones returns a tensor of the given shape filled with ones.
func Ones(shape ...int) *Dense {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = 1
	}
	return t
}

// Eye returns the n by n identity matrix.
func Eye(n int) *Dense {
	t := Zeros(n, n)
	for i := range n {
		t.data[i*n+i] = 1
	}
	return t
}

// T2 creates a matrix from rows.
func T2(rows [][]float64) *Dense {
	t := Zeros(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != t.shape[1] {
			panic(fmt.Sprintf("%d %d %d", i, len(row), t.shape[1]))
		}
		copy(t.data[i*t.shape[1]:], row)
	}
	return t
}

func (t *Dense) Shape() []int { return slices.Clone(t.shape) }
func (t *Dense) Rank() int    { return len(t.shape) }
func (t *Dense) Size() int    { return len(t.data) }

// Data returns the underlying storage.
func (t *Dense) Data() []float64 { return t.data }

func (t *Dense) offset(ijk []int) int {
	if len(ijk) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", ijk, t.shape))
	}
	var off int
	for i, d := range t.shape {
		if ijk[i] < 0 || ijk[i] >= d {
			panic(fmt.Sprintf("%#v %#v", ijk, t.shape))
		}
		off = off*d + ijk[i]
	}
	return off
}

func (t *Dense) At(ijk ...int) float64 {
	return t.data[t.offset(ijk)]
}

func (t *Dense) SetAt(ijk []int, v float64) {
	t.data[t.offset(ijk)] = v
}

func (t *Dense) AddAt(ijk []int, v float64) {
	t.data[t.offset(ijk)] += v
}

// All iterates over the elements of t in row-major order.
// The index slice is reused between iterations.
func (t *Dense) All() iter.Seq2[[]int, float64] {
	return func(yield func([]int, float64) bool) {
		ijk := make([]int, len(t.shape))
		for _, v := range t.data {
			if !yield(ijk, v) {
				return
			}
			for d := len(ijk) - 1; d >= 0; d-- {
				ijk[d]++
				if ijk[d] < t.shape[d] {
					break
				}
				ijk[d] = 0
			}
		}
	}
}

func (t *Dense) Clone() *Dense {
	return &Dense{shape: slices.Clone(t.shape), data: slices.Clone(t.data)}
}

// Reshape returns a tensor sharing the storage of t with a new shape.
// At most one dimension may be -1, in which case it is inferred.
func (t *Dense) Reshape(shape ...int) *Dense {
	shape = slices.Clone(shape)
	infer := -1
	known := 1
	for i, d := range shape {
		switch {
		case d == -1 && infer == -1:
			infer = i
		case d < 0:
			panic(fmt.Sprintf("%#v", shape))
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			panic(fmt.Sprintf("%#v %#v", t.shape, shape))
		}
		shape[infer] = len(t.data) / known
	}
	if volume(shape) != len(t.data) {
		panic(fmt.Sprintf("%#v %#v", t.shape, shape))
	}
	return &Dense{shape: shape, data: t.data}
}

// Transpose returns a copy of t whose axis i is axis axes[i] of t.
func (t *Dense) Transpose(axes ...int) *Dense {
	if len(axes) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", axes, t.shape))
	}
	seen := make([]bool, len(axes))
	inStrides := strides(t.shape)
	shape := make([]int, len(axes))
	s := make([]int, len(axes))
	for i, ax := range axes {
		if ax < 0 || ax >= len(axes) || seen[ax] {
			panic(fmt.Sprintf("%#v", axes))
		}
		seen[ax] = true
		shape[i] = t.shape[ax]
		s[i] = inStrides[ax]
	}

	out := Zeros(shape...)
	ijk := make([]int, len(shape))
	var off int
	for k := range out.data {
		out.data[k] = t.data[off]
		for d := len(shape) - 1; d >= 0; d-- {
			ijk[d]++
			off += s[d]
			if ijk[d] < shape[d] {
				break
			}
			off -= s[d] * shape[d]
			ijk[d] = 0
		}
	}
	return out
}

// Scale multiplies t by c in place.
func (t *Dense) Scale(c float64) *Dense {
	for i := range t.data {
		t.data[i] *= c
	}
	return t
}

// Add sets t = t + c*b in place.
func (t *Dense) Add(c float64, b *Dense) *Dense {
	if len(t.data) != len(b.data) {
		panic(fmt.Sprintf("%#v %#v", t.shape, b.shape))
	}
	for i, v := range b.data {
		t.data[i] += c * v
	}
	return t
}

func (t *Dense) Norm() float64 {
	return math.Sqrt(Dot(t, t))
}

// Dot returns the sum of the elementwise product of a and b.
func Dot(a, b *Dense) float64 {
	if len(a.data) != len(b.data) {
		panic(fmt.Sprintf("%#v %#v", a.shape, b.shape))
	}
	var s float64
	for i, v := range a.data {
		s += v * b.data[i]
	}
	return s
}

// Product contracts the axes pairs {axis of a, axis of b} of a and b.
// The result has the uncontracted axes of a followed by those of b.
func Product(a, b *Dense, axes [][2]int) *Dense {
	contractedA := make([]bool, len(a.shape))
	contractedB := make([]bool, len(b.shape))
	k := 1
	for _, ax := range axes {
		if contractedA[ax[0]] || contractedB[ax[1]] || a.shape[ax[0]] != b.shape[ax[1]] {
			panic(fmt.Sprintf("%#v %#v %#v", a.shape, b.shape, axes))
		}
		contractedA[ax[0]], contractedB[ax[1]] = true, true
		k *= a.shape[ax[0]]
	}

	shape := make([]int, 0, len(a.shape)+len(b.shape)-2*len(axes))
	permA := make([]int, 0, len(a.shape))
	permB := make([]int, 0, len(b.shape))
	m := 1
	for i, d := range a.shape {
		if !contractedA[i] {
			permA = append(permA, i)
			shape = append(shape, d)
			m *= d
		}
	}
	for _, ax := range axes {
		permA = append(permA, ax[0])
		permB = append(permB, ax[1])
	}
	n := 1
	for i, d := range b.shape {
		if !contractedB[i] {
			permB = append(permB, i)
			shape = append(shape, d)
			n *= d
		}
	}

	c := Zeros(shape...)
	if m == 0 || n == 0 || k == 0 {
		return c
	}
	am := mat.NewDense(m, k, permute(a, permA).data)
	bm := mat.NewDense(k, n, permute(b, permB).data)
	cm := mat.NewDense(m, n, c.data)
	cm.Mul(am, bm)
	return c
}

// Matrix returns a gonum view of a rank 2 tensor sharing its storage.
func (t *Dense) Matrix() *mat.Dense {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("%#v", t.shape))
	}
	return mat.NewDense(t.shape[0], t.shape[1], t.data)
}

// FromMatrix copies a gonum matrix into a rank 2 tensor.
func FromMatrix(m mat.Matrix) *Dense {
	r, c := m.Dims()
	t := Zeros(r, c)
	for i := range r {
		for j := range c {
			t.data[i*c+j] = m.At(i, j)
		}
	}
	return t
}

// EqualApprox reports whether a and b have the same shape and elements within tol.
func EqualApprox(a, b *Dense, tol float64) bool {
	if !slices.Equal(a.shape, b.shape) {
		return false
	}
	for i, v := range a.data {
		if math.Abs(v-b.data[i]) > tol {
			return false
		}
	}
	return true
}

func (t *Dense) String() string {
	shapeStrs := make([]string, 0, len(t.shape))
	for _, d := range t.shape {
		shapeStrs = append(shapeStrs, strconv.Itoa(d))
	}
	ss := make([]string, 0, len(t.data))
	for _, v := range t.data {
		ss = append(ss, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return fmt.Sprintf("[%s][%s]", strings.Join(shapeStrs, ","), strings.Join(ss, ","))
}

func permute(t *Dense, perm []int) *Dense {
	for i, p := range perm {
		if i != p {
			return t.Transpose(perm...)
		}
	}
	return t
}

func volume(shape []int) int {
	v := 1
	for _, d := range shape {
		v *= d
	}
	return v
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}
