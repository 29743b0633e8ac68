// Package index is an exact nearest-neighbor index over L2-normalized vectors.
// Inner product over unit vectors equals cosine similarity.
// It knows nothing about documents: callers map positions to ids.
package index

import (
	"container/heap"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimMismatch signals a vector of the wrong dimension.
	ErrDimMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector signals a vector that cannot be normalized.
	ErrZeroVector = errors.New("zero vector")
	// ErrBadFormat signals an unreadable index blob.
	ErrBadFormat = errors.New("bad index format")
)

const (
	magic         = "LRIX"
	formatVersion = 1
	headerSize    = 16 // magic + version + dim + count
)

// Hit is a matched position with its similarity.
type Hit struct {
	Pos   int
	Score float32
}

// Flat is a brute-force inner product index. It is not safe for concurrent
// mutation; readers may share an instance that is no longer mutated.
type Flat struct {
	dim  int
	data []float32 // row-major, len = dim*count
}

// New creates an empty index of the given dimension.
func New(dim int) *Flat {
	return &Flat{dim: dim}
}

// Dim returns the vector dimension.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends a normalized copy of v and returns its position.
func (f *Flat) Add(v []float32) (int, error) {
	n, err := f.prepare(v)
	if err != nil {
		return 0, err
	}
	f.data = append(f.data, n...)
	return f.Len() - 1, nil
}

// Set overwrites the vector at pos with a normalized copy of v.
func (f *Flat) Set(pos int, v []float32) error {
	if pos < 0 || pos >= f.Len() {
		return fmt.Errorf("position %d out of range [0,%d)", pos, f.Len())
	}
	n, err := f.prepare(v)
	if err != nil {
		return err
	}
	copy(f.data[pos*f.dim:(pos+1)*f.dim], n)
	return nil
}

// Vector returns the stored (normalized) vector at pos. Callers must not mutate it.
func (f *Flat) Vector(pos int) []float32 {
	return f.data[pos*f.dim : (pos+1)*f.dim : (pos+1)*f.dim]
}

// Clone returns an independent copy.
func (f *Flat) Clone() *Flat {
	data := make([]float32, len(f.data), len(f.data)+f.dim)
	copy(data, f.data)
	return &Flat{dim: f.dim, data: data}
}

// Search returns up to k positions with the highest inner product against q.
// Ties are ordered by ascending position.
func (f *Flat) Search(q []float32, k int) ([]Hit, error) {
	n := f.Len()
	if n == 0 {
		return nil, nil
	}
	nq, err := f.query(q)
	if err != nil {
		return nil, err
	}
	top := newTopK(k)
	for pos := 0; pos < n; pos++ {
		top.offer(Hit{Pos: pos, Score: dot(nq, f.Vector(pos))})
	}
	return top.sorted(), nil
}

// SearchSubset is Search restricted to the given positions.
func (f *Flat) SearchSubset(q []float32, positions []int, k int) ([]Hit, error) {
	n := f.Len()
	if n == 0 || len(positions) == 0 {
		return nil, nil
	}
	nq, err := f.query(q)
	if err != nil {
		return nil, err
	}
	top := newTopK(k)
	for _, pos := range positions {
		if pos < 0 || pos >= n {
			continue
		}
		top.offer(Hit{Pos: pos, Score: dot(nq, f.Vector(pos))})
	}
	return top.sorted(), nil
}

// query normalizes a search vector without fixing the dimension.
func (f *Flat) query(q []float32) ([]float32, error) {
	if len(q) != f.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimMismatch, f.dim, len(q))
	}
	return Normalize(q)
}

// prepare normalizes a stored vector; the first one fixes the dimension.
func (f *Flat) prepare(v []float32) ([]float32, error) {
	if f.dim == 0 {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector", ErrDimMismatch)
		}
		f.dim = len(v)
	}
	if len(v) != f.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimMismatch, f.dim, len(v))
	}
	return Normalize(v)
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, ErrZeroVector
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, nil
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// MarshalBinary encodes the index as a little-endian blob with a fixed header.
func (f *Flat) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+4*len(f.data))
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], formatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(f.dim))     //nolint:gosec // dim is bounded by provider output
	binary.LittleEndian.PutUint32(buf[12:16], uint32(f.Len())) //nolint:gosec // count fits in uint32
	for i, x := range f.data {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], math.Float32bits(x))
	}
	return buf, nil
}

// UnmarshalBinary decodes a blob produced by MarshalBinary.
func (f *Flat) UnmarshalBinary(buf []byte) error {
	if len(buf) < headerSize || string(buf[0:4]) != magic {
		return fmt.Errorf("%w: missing header", ErrBadFormat)
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadFormat, v)
	}
	dim := int(binary.LittleEndian.Uint32(buf[8:12]))
	count := int(binary.LittleEndian.Uint32(buf[12:16]))
	if want := headerSize + 4*dim*count; len(buf) != want {
		return fmt.Errorf("%w: size %d, header says %d", ErrBadFormat, len(buf), want)
	}
	data := make([]float32, dim*count)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[headerSize+4*i:]))
	}
	f.dim = dim
	f.data = data
	return nil
}

// topK keeps the k best hits in a min-heap.
type topK struct {
	k int
	h hitHeap
}

func newTopK(k int) *topK {
	if k < 0 {
		k = 0
	}
	return &topK{k: k, h: make(hitHeap, 0, min(k, 1024))}
}

func (t *topK) offer(h Hit) {
	if t.k == 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, h)
		return
	}
	if worse(t.h[0], h) {
		t.h[0] = h
		heap.Fix(&t.h, 0)
	}
}

func (t *topK) sorted() []Hit {
	out := make([]Hit, len(t.h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(Hit) //nolint:forcetypeassert // heap holds only Hit
	}
	return out
}

// worse reports whether a ranks below b.
func worse(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Pos > b.Pos
}

type hitHeap []Hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(Hit)) } //nolint:forcetypeassert // heap holds only Hit
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
