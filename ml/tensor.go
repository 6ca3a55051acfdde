// tensor.go - Dichter Tensor mit float16-Speicher
//
// Dieses Modul enthaelt:
// - Tensor: Shape + float16-Daten, das Austauschformat zum Backend
// - Konstruktoren: NewTensor, TensorFromFloat32
// - Elementweise Operationen: Add, Sub, Scale, Lerp
// - Vergleiche: Equal, MaxAbsDiff
//
// Alle Operationen rechnen elementweise in float32 und runden das
// Ergebnis zurueck auf float16. Damit bleibt jeder Zwischenwert im
// nativen Zahlenformat des Backends darstellbar. Shape-Mismatch ist
// ein Programmierfehler und fuehrt zu panic (wie in gonum/floats).
package ml

import (
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Tensor ist ein dichter Tensor mit float16-Elementen
type Tensor struct {
	shape []int
	data  []float16.Float16
}

// NewTensor erstellt einen Null-Tensor mit der gegebenen Shape
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("ml: ungueltige dimension %d in shape %v", d, shape))
		}
		n *= d
	}
	return &Tensor{
		shape: append([]int(nil), shape...),
		data:  make([]float16.Float16, n),
	}
}

// TensorFromFloat32 erstellt einen Tensor aus float32-Daten
// Jeder Wert wird auf float16 gerundet
func TensorFromFloat32(data []float32, shape ...int) (*Tensor, error) {
	t := NewTensor(shape...)
	if len(data) != len(t.data) {
		return nil, fmt.Errorf("ml: %d werte passen nicht in shape %v", len(data), shape)
	}
	for i, v := range data {
		t.data[i] = float16.Fromfloat32(v)
	}
	return t, nil
}

// Shape gibt eine Kopie der Tensor-Form zurueck
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Elems gibt die Anzahl der Elemente zurueck
func (t *Tensor) Elems() int {
	return len(t.data)
}

// Float32s gibt die Daten als neuen float32-Slice zurueck
func (t *Tensor) Float32s() []float32 {
	out := make([]float32, len(t.data))
	for i, v := range t.data {
		out[i] = v.Float32()
	}
	return out
}

// Clone erstellt eine tiefe Kopie
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{
		shape: append([]int(nil), t.shape...),
		data:  make([]float16.Float16, len(t.data)),
	}
	copy(c.data, t.data)
	return c
}

// sameShape prueft Dimensionsgleichheit
func sameShape(a, b *Tensor) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}

func mustMatch(op string, a, b *Tensor) {
	if !sameShape(a, b) {
		panic(fmt.Sprintf("ml: %s mit shapes %v und %v", op, a.shape, b.shape))
	}
}

// Add gibt a + b als neuen Tensor zurueck
func Add(a, b *Tensor) *Tensor {
	mustMatch("add", a, b)
	out := NewTensor(a.shape...)
	for i := range a.data {
		out.data[i] = float16.Fromfloat32(a.data[i].Float32() + b.data[i].Float32())
	}
	return out
}

// Sub gibt a - b als neuen Tensor zurueck
func Sub(a, b *Tensor) *Tensor {
	mustMatch("sub", a, b)
	out := NewTensor(a.shape...)
	for i := range a.data {
		out.data[i] = float16.Fromfloat32(a.data[i].Float32() - b.data[i].Float32())
	}
	return out
}

// Scale gibt s * a als neuen Tensor zurueck
func Scale(a *Tensor, s float32) *Tensor {
	out := NewTensor(a.shape...)
	for i := range a.data {
		out.data[i] = float16.Fromfloat32(a.data[i].Float32() * s)
	}
	return out
}

// Lerp interpoliert linear: a + t*(b-a)
func Lerp(a, b *Tensor, t float32) *Tensor {
	mustMatch("lerp", a, b)
	out := NewTensor(a.shape...)
	for i := range a.data {
		av := a.data[i].Float32()
		bv := b.data[i].Float32()
		out.data[i] = float16.Fromfloat32(av + t*(bv-av))
	}
	return out
}

// Equal prueft bitweise Gleichheit von Shape und Daten
func Equal(a, b *Tensor) bool {
	if !sameShape(a, b) {
		return false
	}
	for i := range a.data {
		if a.data[i].Bits() != b.data[i].Bits() {
			return false
		}
	}
	return true
}

// MaxAbsDiff gibt die groesste absolute Differenz zurueck
func MaxAbsDiff(a, b *Tensor) float32 {
	mustMatch("maxabsdiff", a, b)
	var m float64
	for i := range a.data {
		d := math.Abs(float64(a.data[i].Float32()) - float64(b.data[i].Float32()))
		if d > m {
			m = d
		}
	}
	return float32(m)
}
