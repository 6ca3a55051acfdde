// state.go - Geteilter Generierungs-Zustand des Stream-Servers
//
// Enthaelt:
// - Config: Startparameter der Pipeline
// - State: Prompt-Embeddings, Staerke-Tripel, Feedback, Seed-Rauschen
// - Setter fuer alle Stream-Kommandos (ungueltige Werte werden verworfen)
// - beginFrame/finishFrame: Snapshot-Disziplin fuer die Engine
//
// Alle Parameter eines Frames stammen aus genau einem Snapshot, damit
// ein Kommando niemals einen halb verarbeiteten Frame veraendert.
package diffusion

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pictaflux/flowpaint/ml"
)

const (
	// embeddingEpsilon: unterhalb dieser Differenz gilt das Blending
	// als konvergiert
	embeddingEpsilon = 1e-4

	minSteps = 1
	maxSteps = 8
)

// Config sind die Startparameter der Pipeline
type Config struct {
	RenderSize     int
	Prompt         string
	NegativePrompt string
	Strength       float64
	Feedback       float64
	LerpSpeed      float64
	GuidanceScale  float64
	Steps          int
	Seed           int64
}

// DefaultConfig gibt die Standardparameter zurueck
func DefaultConfig() Config {
	return Config{
		RenderSize:    512,
		Prompt:        "oil painting style, masterpiece, highly detailed",
		Strength:      0.4,
		Feedback:      0.1,
		LerpSpeed:     0.1,
		GuidanceScale: 1.0,
		Steps:         1,
		Seed:          42,
	}
}

// State haelt den veraenderlichen Zustand der Diffusion-Pipeline.
// Er wird von allen Verbindungen geteilt.
type State struct {
	backend  ml.Backend
	schedule *NoiseSchedule
	sem      *semaphore.Weighted

	mu sync.Mutex

	// Prompt-Blending
	targetEmbedding   *ml.Tensor
	currentEmbedding  *ml.Tensor
	negativeEmbedding *ml.Tensor
	lerpSpeed         float32

	// Staerke-Tripel, wird immer zusammen aktualisiert
	timestep          int
	sqrtAlpha         float32
	sqrtOneMinusAlpha float32

	feedback      float32
	guidanceScale float32
	numSteps      int

	seed        int64
	latentShape []int
	fixedNoise  *ml.Tensor
	prevLatent  *ml.Tensor
}

// frameParams ist der unveraenderliche Parameter-Snapshot eines Frames
type frameParams struct {
	embedding         *ml.Tensor
	negative          *ml.Tensor
	timestep          int
	sqrtAlpha         float32
	sqrtOneMinusAlpha float32
	feedback          float32
	guidanceScale     float32
	numSteps          int
	noise             *ml.Tensor
	prevLatent        *ml.Tensor
}

// NewState baut den Zustand auf und berechnet die initialen
// Embeddings. Der Semaphor serialisiert Backend-Zugriffe mit der
// Frame-Verarbeitung und wird mit der Engine geteilt.
func NewState(ctx context.Context, backend ml.Backend, sem *semaphore.Weighted, cfg Config) (*State, error) {
	s := &State{
		backend:     backend,
		schedule:    NewNoiseSchedule(),
		sem:         sem,
		latentShape: backend.LatentShape(cfg.RenderSize),
	}

	target, err := s.embedText(ctx, cfg.Prompt)
	if err != nil {
		return nil, err
	}
	negative, err := s.embedText(ctx, cfg.NegativePrompt)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.targetEmbedding = target
	s.currentEmbedding = target
	s.negativeEmbedding = negative
	s.applyStrengthLocked(cfg.Strength)
	s.feedback = float32(clamp01(cfg.Feedback))
	s.lerpSpeed = float32(clamp01(cfg.LerpSpeed))
	s.guidanceScale = normalizeGuidance(cfg.GuidanceScale)
	s.numSteps = clampSteps(cfg.Steps)
	s.seed = cfg.Seed
	s.fixedNoise = ml.RandomNormal(cfg.Seed, s.latentShape...)

	return s, nil
}

// embedText serialisiert Embedding-Aufrufe mit laufenden Frames
func (s *State) embedText(ctx context.Context, text string) (*ml.Tensor, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	return s.backend.EmbedText(ctx, text)
}

// ============================================================================
// Setter fuer Stream-Kommandos
// ============================================================================

// SetTargetPrompt berechnet das Embedding des neuen Prompts und setzt
// es als Blending-Ziel. Das Embedding laeuft ausserhalb des Locks.
func (s *State) SetTargetPrompt(ctx context.Context, prompt string) error {
	emb, err := s.embedText(ctx, prompt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetEmbedding = emb
	return nil
}

// SetNegativePrompt berechnet und setzt das Negativ-Embedding.
// Es wird ohne Blending sofort wirksam.
func (s *State) SetNegativePrompt(ctx context.Context, prompt string) error {
	emb, err := s.embedText(ctx, prompt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.negativeEmbedding = emb
	return nil
}

// SetStrength aktualisiert Timestep und Injektions-Koeffizienten als
// Tripel. NaN/Inf werden verworfen, der Wert wird auf [0,1] geklemmt.
func (s *State) SetStrength(v float64) {
	if badFloat(v) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyStrengthLocked(v)
}

func (s *State) applyStrengthLocked(v float64) {
	t := s.schedule.TimestepFor(v)
	sa, soma := s.schedule.CoefficientsAt(t)
	s.timestep, s.sqrtAlpha, s.sqrtOneMinusAlpha = t, sa, soma
}

// SetFeedback setzt die Beimischung des vorherigen Latents [0,1]
func (s *State) SetFeedback(v float64) {
	if badFloat(v) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = float32(clamp01(v))
}

// SetLerpSpeed setzt die Blending-Geschwindigkeit [0,1]
func (s *State) SetLerpSpeed(v float64) {
	if badFloat(v) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lerpSpeed = float32(clamp01(v))
}

// SetGuidanceScale setzt die CFG-Skala. Werte unter 1 bedeuten
// keine Guidance und werden auf 1 geklemmt.
func (s *State) SetGuidanceScale(v float64) {
	if badFloat(v) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.guidanceScale = normalizeGuidance(v)
}

// SetSteps setzt die Anzahl der DDIM-Schritte, geklemmt auf [1,8]
func (s *State) SetSteps(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numSteps = clampSteps(n)
}

// SetSeed erzeugt das feste Rauschen deterministisch neu. Gleicher
// Seed ergibt bitweise das gleiche Rauschen.
func (s *State) SetSeed(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = n
	s.fixedNoise = ml.RandomNormal(n, s.latentShape...)
}

// ============================================================================
// Frame-Snapshot
// ============================================================================

// beginFrame schiebt das Prompt-Blending einen Schritt weiter und
// gibt den Parameter-Snapshot fuer genau einen Frame zurueck.
func (s *State) beginFrame() frameParams {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceEmbeddingLocked()

	return frameParams{
		embedding:         s.currentEmbedding,
		negative:          s.negativeEmbedding,
		timestep:          s.timestep,
		sqrtAlpha:         s.sqrtAlpha,
		sqrtOneMinusAlpha: s.sqrtOneMinusAlpha,
		feedback:          s.feedback,
		guidanceScale:     s.guidanceScale,
		numSteps:          s.numSteps,
		noise:             s.fixedNoise,
		prevLatent:        s.prevLatent,
	}
}

// advanceEmbeddingLocked blendet das aktuelle Embedding in Richtung
// Ziel. Unterhalb der Konvergenz-Schwelle passiert nichts.
func (s *State) advanceEmbeddingLocked() {
	if ml.MaxAbsDiff(s.currentEmbedding, s.targetEmbedding) <= embeddingEpsilon {
		return
	}
	s.currentEmbedding = ml.Lerp(s.currentEmbedding, s.targetEmbedding, s.lerpSpeed)
}

// finishFrame merkt sich das entrauschte Latent fuer das Feedback
// des naechsten Frames
func (s *State) finishFrame(latent *ml.Tensor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prevLatent = latent
}

// ============================================================================
// Getter (Introspektion und Tests)
// ============================================================================

// Timestep gibt den aktuellen Injektions-Timestep zurueck
func (s *State) Timestep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timestep
}

// Feedback gibt die aktuelle Feedback-Staerke zurueck
func (s *State) Feedback() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.feedback)
}

// LerpSpeed gibt die aktuelle Blending-Geschwindigkeit zurueck
func (s *State) LerpSpeed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.lerpSpeed)
}

// GuidanceScale gibt die aktuelle CFG-Skala zurueck
func (s *State) GuidanceScale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.guidanceScale)
}

// Steps gibt die aktuelle Schritt-Anzahl zurueck
func (s *State) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numSteps
}

// Seed gibt den aktuellen Seed zurueck
func (s *State) Seed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

// ============================================================================
// Wertebereich-Helfer
// ============================================================================

// badFloat meldet NaN und +-Inf, solche Werte werden verworfen
func badFloat(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func normalizeGuidance(v float64) float32 {
	if v < 1 {
		return 1
	}
	return float32(v)
}

func clampSteps(n int) int {
	if n < minSteps {
		return minSteps
	}
	if n > maxSteps {
		return maxSteps
	}
	return n
}
