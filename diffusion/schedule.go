// schedule.go - DDIM Noise-Schedule und Timestep-Logik
//
// Enthaelt:
// - NoiseSchedule: scaled-linear Beta-Schedule mit 1000 Timesteps
// - CoefficientsAt/SuccessorCoefficients: sqrt-Alpha-Paare fuer
//   Noise-Injektion und den DDIM-Update
// - TimestepFor: Staerke [0,1] auf Timestep [0,999] abbilden
// - StepSequence: absteigende Timestep-Paare fuer die Denoise-Schleife
package diffusion

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// numTrainTimesteps ist die Schedule-Laenge des trainierten Modells
	numTrainTimesteps = 1000

	// betaStart/betaEnd spannen den scaled-linear Schedule der
	// Stable-Diffusion-Familie auf
	betaStart = 8.5e-4
	betaEnd   = 1.2e-2
)

// NoiseSchedule haelt die kumulierten Alpha-Produkte des Modells
type NoiseSchedule struct {
	alphaCumprod []float64
}

// NewNoiseSchedule baut den scaled-linear Schedule auf: die Betas
// werden im sqrt-Raum linear interpoliert und dann quadriert.
func NewNoiseSchedule() *NoiseSchedule {
	sqrtBetas := make([]float64, numTrainTimesteps)
	floats.Span(sqrtBetas, math.Sqrt(betaStart), math.Sqrt(betaEnd))

	alphaCumprod := make([]float64, numTrainTimesteps)
	prod := 1.0
	for i, sb := range sqrtBetas {
		prod *= 1 - sb*sb
		alphaCumprod[i] = prod
	}

	return &NoiseSchedule{alphaCumprod: alphaCumprod}
}

// AlphaCumprod gibt das kumulierte Alpha-Produkt fuer einen Timestep
// zurueck. Der Timestep wird auf den gueltigen Bereich geklemmt.
func (s *NoiseSchedule) AlphaCumprod(t int) float64 {
	if t < 0 {
		t = 0
	}
	if t >= len(s.alphaCumprod) {
		t = len(s.alphaCumprod) - 1
	}
	return s.alphaCumprod[t]
}

// CoefficientsAt gibt (sqrt(alpha), sqrt(1-alpha)) fuer einen Timestep
// zurueck. Das Paar skaliert Signal- und Rausch-Anteil bei der
// Injektion und im Nenner des DDIM-Updates.
func (s *NoiseSchedule) CoefficientsAt(t int) (float32, float32) {
	alpha := s.AlphaCumprod(t)
	return float32(math.Sqrt(alpha)), float32(math.Sqrt(1 - alpha))
}

// SuccessorCoefficients gibt die Koeffizienten fuer den Ziel-Timestep
// eines DDIM-Schritts zurueck. Timestep 0 ist der terminale Fall: das
// Paar ist exakt (1, 0), der Schritt liefert das vorhergesagte saubere
// Latent unveraendert.
func (s *NoiseSchedule) SuccessorCoefficients(t int) (float32, float32) {
	if t <= 0 {
		return 1, 0
	}
	return s.CoefficientsAt(t)
}

// TimestepFor bildet eine Staerke [0,1] auf einen Timestep [0,999] ab.
// NaN und Werte ausserhalb des Bereichs werden geklemmt.
func (s *NoiseSchedule) TimestepFor(strength float64) int {
	return int(math.Round(clamp01(strength) * float64(numTrainTimesteps-1)))
}

// clamp01 klemmt auf [0,1], NaN wird zu 0
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Step ist ein DDIM-Schritt von Timestep T nach Timestep Next
type Step struct {
	T    int
	Next int
}

// StepSequence verteilt numSteps DDIM-Schritte gleichmaessig von
// from abwaerts bis 0. Die Stuetzstellen werden auf ganze Timesteps
// gerundet.
func StepSequence(from, numSteps int) []Step {
	if numSteps < 1 {
		numSteps = 1
	}

	pts := make([]float64, numSteps+1)
	floats.Span(pts, float64(from), 0)

	steps := make([]Step, numSteps)
	for i := range steps {
		steps[i] = Step{
			T:    int(math.Round(pts[i])),
			Next: int(math.Round(pts[i+1])),
		}
	}
	return steps
}
