// random.go - Deterministische Zufalls-Tensoren
//
// Enthaelt:
// - RandomNormal: Gauss-Tensor aus einem Seed
//
// Der Generator ist bewusst deterministisch: derselbe Seed ergibt
// bitweise denselben Tensor, unabhaengig von Plattform und Lauf.
package ml

import (
	"math/rand"

	"github.com/x448/float16"
)

// RandomNormal erstellt einen Tensor mit N(0,1)-verteilten Werten
// aus dem gegebenen Seed, gerundet auf float16
func RandomNormal(seed int64, shape ...int) *Tensor {
	t := NewTensor(shape...)
	rng := rand.New(rand.NewSource(seed))
	for i := range t.data {
		t.data[i] = float16.Fromfloat32(float32(rng.NormFloat64()))
	}
	return t
}
