// engine.go - Frame-Verarbeitung der Diffusion-Pipeline
//
// Der Weg eines Frames: dekodieren, zu Latents enkodieren, Feedback
// des vorherigen Frames beimischen, festes Rauschen injizieren,
// entrauschen (schneller Pfad oder DDIM-Schleife mit CFG), zurueck
// zu Pixeln dekodieren und als JPEG kodieren.
package diffusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pictaflux/flowpaint/logutil"
	"github.com/pictaflux/flowpaint/ml"
	"github.com/pictaflux/flowpaint/vision"
)

// engineFailureLimit: nach so vielen Backend-Fehlern in Folge gilt
// die Engine als ausgefallen
const engineFailureLimit = 3

var (
	// ErrFrameDecode: der Frame war nicht dekodierbar, der Aufrufer
	// ueberspringt ihn ohne die Engine zu belasten
	ErrFrameDecode = errors.New("diffusion: frame nicht dekodierbar")

	// ErrEngineFailed: zu viele Backend-Fehler in Folge, die Engine
	// liefert keine Frames mehr
	ErrEngineFailed = errors.New("diffusion: engine ausgefallen")
)

// Engine verarbeitet einzelne Frames gegen den geteilten Zustand
type Engine struct {
	backend    ml.Backend
	state      *State
	sem        *semaphore.Weighted
	renderSize int
	outputSize int

	// Backend-Fehler in Folge, nur unter dem Semaphor veraendert
	fails int
}

// NewEngine verbindet Backend und Zustand. Der Semaphor muss derselbe
// sein den auch der Zustand fuer Embeddings nutzt.
func NewEngine(backend ml.Backend, state *State, sem *semaphore.Weighted, renderSize, outputSize int) *Engine {
	return &Engine{
		backend:    backend,
		state:      state,
		sem:        sem,
		renderSize: renderSize,
		outputSize: outputSize,
	}
}

// ProcessFrame verarbeitet einen eingehenden Frame zu einem
// stilisierten JPEG. Dekodier-Fehler geben ErrFrameDecode zurueck,
// wiederholte Backend-Fehler eskalieren zu ErrEngineFailed.
func (e *Engine) ProcessFrame(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()

	frame, err := vision.DecodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameDecode, err)
	}

	pixels, err := vision.ToModelTensor(frame, e.renderSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameDecode, err)
	}

	// Backend-Arbeit prozessweit serialisieren
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	params := e.state.beginFrame()

	latent, err := e.run(ctx, pixels, params)
	if err != nil {
		return nil, e.recordFailure(err)
	}

	// Feedback-Quelle des naechsten Frames, wie beim Original vor
	// dem VAE-Decode gespeichert
	e.state.finishFrame(latent)

	decoded, err := e.backend.DecodeImage(ctx, latent)
	if err != nil {
		return nil, e.recordFailure(err)
	}
	e.fails = 0

	out, err := vision.FromModelTensor(decoded)
	if err != nil {
		return nil, err
	}

	if e.outputSize != out.Width {
		out, err = vision.Resize(out, e.outputSize, e.outputSize)
		if err != nil {
			return nil, err
		}
	}

	jpegData, err := vision.EncodeJPEG(out, vision.DefaultJPEGQuality)
	if err != nil {
		return nil, err
	}

	slog.Debug("frame verarbeitet",
		"dauer", time.Since(start),
		"timestep", params.timestep,
		"schritte", params.numSteps,
		"guidance", params.guidanceScale)

	return jpegData, nil
}

// recordFailure zaehlt Backend-Fehler in Folge. Kontext-Abbrueche
// zaehlen nicht, die Engine ist danach weiter gesund.
func (e *Engine) recordFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	e.fails++
	if e.fails >= engineFailureLimit {
		return fmt.Errorf("%w: %v", ErrEngineFailed, err)
	}
	return err
}

// run fuehrt Encode, Feedback, Noise-Injektion und Denoising aus und
// gibt das entrauschte Latent zurueck
func (e *Engine) run(ctx context.Context, pixels *ml.Tensor, params frameParams) (*ml.Tensor, error) {
	latent, err := e.backend.EncodeImage(ctx, pixels)
	if err != nil {
		return nil, fmt.Errorf("vae encode: %w", err)
	}

	// Zeitliche Glaettung: vorheriges Ergebnis beimischen
	if params.feedback > 0 && params.prevLatent != nil {
		latent = ml.Lerp(latent, params.prevLatent, params.feedback)
	}

	noisy := injectNoise(latent, params.noise, params.sqrtAlpha, params.sqrtOneMinusAlpha)

	if params.guidanceScale <= 1 && params.numSteps <= 1 {
		return e.fastPath(ctx, noisy, params)
	}
	return e.guidedPath(ctx, noisy, params)
}

// injectNoise verrauscht ein Latent auf den Ziel-Timestep:
// sqrtAlpha*latent + sqrtOneMinusAlpha*noise
func injectNoise(latent, noise *ml.Tensor, sqrtAlpha, sqrtOneMinusAlpha float32) *ml.Tensor {
	return ml.Add(ml.Scale(latent, sqrtAlpha), ml.Scale(noise, sqrtOneMinusAlpha))
}

// fastPath ist der 1-Schritt-Weg ohne Guidance: eine einzige
// UNet-Vorhersage, dann direkt das saubere Latent berechnen
func (e *Engine) fastPath(ctx context.Context, noisy *ml.Tensor, params frameParams) (*ml.Tensor, error) {
	pred, err := e.backend.Denoise(ctx, noisy, params.timestep, params.embedding)
	if err != nil {
		return nil, fmt.Errorf("denoise: %w", err)
	}

	c0, c1 := e.state.schedule.CoefficientsAt(params.timestep)
	return predictedClean(noisy, pred, c0, c1), nil
}

// guidedPath laeuft die DDIM-Schleife mit optionaler CFG
func (e *Engine) guidedPath(ctx context.Context, noisy *ml.Tensor, params frameParams) (*ml.Tensor, error) {
	x := noisy
	for _, step := range StepSequence(params.timestep, params.numSteps) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		stepStart := time.Now()

		pred, err := e.predict(ctx, x, step.T, params)
		if err != nil {
			return nil, err
		}

		c0, c1 := e.state.schedule.CoefficientsAt(step.T)
		x0 := predictedClean(x, pred, c0, c1)

		n0, n1 := e.state.schedule.SuccessorCoefficients(step.Next)
		x = ml.Add(ml.Scale(x0, n0), ml.Scale(pred, n1))

		logutil.Trace("ddim schritt", "t", step.T, "next", step.Next, "dauer", time.Since(stepStart))
	}
	return x, nil
}

// predict holt die Rausch-Vorhersage, mit CFG wenn die Skala > 1 ist
func (e *Engine) predict(ctx context.Context, x *ml.Tensor, t int, params frameParams) (*ml.Tensor, error) {
	pos, err := e.backend.Denoise(ctx, x, t, params.embedding)
	if err != nil {
		return nil, fmt.Errorf("denoise: %w", err)
	}

	if params.guidanceScale <= 1 {
		return pos, nil
	}

	neg, err := e.backend.Denoise(ctx, x, t, params.negative)
	if err != nil {
		return nil, fmt.Errorf("denoise negativ: %w", err)
	}

	return applyGuidance(pos, neg, params.guidanceScale), nil
}

// predictedClean rechnet aus verrauschtem Latent und Vorhersage das
// saubere Latent: (x - c1*pred) / c0
func predictedClean(x, pred *ml.Tensor, c0, c1 float32) *ml.Tensor {
	return ml.Scale(ml.Sub(x, ml.Scale(pred, c1)), 1/c0)
}

// applyGuidance verschiebt die Vorhersage von der negativen in
// Richtung der positiven: neg + scale*(pos - neg)
func applyGuidance(pos, neg *ml.Tensor, scale float32) *ml.Tensor {
	diff := ml.Sub(pos, neg)
	return ml.Add(neg, ml.Scale(diff, scale))
}
