//go:build onnx && cgo

// MODUL: onnx/backend
// ZWECK: Diffusion-Backend auf Basis der ONNX Runtime (Diffusers-Export)
// INPUT: Modell-Verzeichnis mit text_encoder/, vae_encoder/, vae_decoder/,
//        unet/ (je model.onnx) und tokenizer/ (vocab.json, merges.txt)
// OUTPUT: ml.Backend Implementierung fuer Encode/Decode/Denoise/Embed
// NEBENEFFEKTE: Laedt vier ONNX Runtime Sessions, registriert sich als "onnx"
// ABHAENGIGKEITEN: session.go, ml (Tensor, Registry), ml/tokenizer
// HINWEISE: Thread-sicher; timestep geht als int64 Tensor [1] an die UNet
//           (Diffusers Export-Standard); Latents werden mit 0.18215 skaliert

package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pictaflux/flowpaint/ml"
	"github.com/pictaflux/flowpaint/ml/tokenizer"
	ort "github.com/yalue/onnxruntime_go"
)

// ============================================================================
// Konstanten
// ============================================================================

const (
	// latentScale ist der Diffusers VAE Skalierungsfaktor
	latentScale = 0.18215

	// latentChannels ist die Kanalzahl des Latent-Raums
	latentChannels = 4

	// latentDownsample ist der VAE Downsampling-Faktor (Pixel zu Latent)
	latentDownsample = 8
)

// Relative Pfade innerhalb des Modell-Verzeichnisses (Diffusers-Layout)
const (
	textEncoderModel = "text_encoder/model.onnx"
	vaeEncoderModel  = "vae_encoder/model.onnx"
	vaeDecoderModel  = "vae_decoder/model.onnx"
	unetModel        = "unet/model.onnx"
	tokenizerDir     = "tokenizer"
)

// ============================================================================
// Fehler-Definitionen
// ============================================================================

var (
	ErrModelLoad     = errors.New("onnx: modell laden fehlgeschlagen")
	ErrSessionCreate = errors.New("onnx: session erstellen fehlgeschlagen")
	ErrInference     = errors.New("onnx: inference fehlgeschlagen")
	ErrAlreadyClosed = errors.New("onnx: backend bereits geschlossen")
	ErrInvalidInput  = errors.New("onnx: ungueltige eingabe")
)

func init() {
	ml.RegisterBackend("onnx", New)
}

// ============================================================================
// Backend - Hauptstruktur
// ============================================================================

// Backend implementiert ml.Backend mit vier ONNX Runtime Sessions,
// eine pro Teilmodell der Diffusion-Pipeline.
type Backend struct {
	textEncoder *Session
	vaeEncoder  *Session
	vaeDecoder  *Session
	unet        *Session
	tok         *tokenizer.Tokenizer
	closed      bool
	mu          sync.RWMutex
}

// ============================================================================
// Konstruktor
// ============================================================================

// New laedt alle Teilmodelle aus einem Diffusers-ONNX-Export.
func New(modelDir string, opts ml.LoadOptions) (ml.Backend, error) {
	// Verzeichnis existiert?
	if _, err := os.Stat(modelDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, modelDir)
	}

	tok, err := tokenizer.Load(filepath.Join(modelDir, tokenizerDir))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	sessOpts := SessionOptions{
		NumThreads:  opts.Threads,
		GPUDeviceID: opts.MainGPU,
	}
	if opts.Device == "cuda" || opts.Device == "gpu" {
		sessOpts.UseGPU = true
	}

	b := &Backend{tok: tok}

	sessions := []struct {
		path    string
		inputs  []string
		outputs []string
		dst     **Session
	}{
		{textEncoderModel, []string{"input_ids"}, []string{"last_hidden_state"}, &b.textEncoder},
		{vaeEncoderModel, []string{"sample"}, []string{"latent_sample"}, &b.vaeEncoder},
		{vaeDecoderModel, []string{"latent_sample"}, []string{"sample"}, &b.vaeDecoder},
		{unetModel, []string{"sample", "timestep", "encoder_hidden_states"}, []string{"out_sample"}, &b.unet},
	}

	for _, s := range sessions {
		sess, err := CreateSession(filepath.Join(modelDir, s.path), s.inputs, s.outputs, sessOpts)
		if err != nil {
			// Bereits erstellte Sessions wieder freigeben
			b.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrSessionCreate, s.path, err)
		}
		*s.dst = sess
	}

	return b, nil
}

// ============================================================================
// ml.Backend Interface - Bild-Pfad
// ============================================================================

// EncodeImage konvertiert Pixel [1, 3, H, W] zu Latents [1, 4, H/8, W/8].
func (b *Backend) EncodeImage(ctx context.Context, pixels *ml.Tensor) (*ml.Tensor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrAlreadyClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, err := ortTensor(pixels)
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	latent, err := b.run(b.vaeEncoder, input)
	if err != nil {
		return nil, fmt.Errorf("vae encoder: %w", err)
	}

	return ml.Scale(latent, latentScale), nil
}

// DecodeImage konvertiert Latents zurueck zu Pixeln [1, 3, H, W].
func (b *Backend) DecodeImage(ctx context.Context, latent *ml.Tensor) (*ml.Tensor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrAlreadyClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, err := ortTensor(ml.Scale(latent, 1/latentScale))
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	pixels, err := b.run(b.vaeDecoder, input)
	if err != nil {
		return nil, fmt.Errorf("vae decoder: %w", err)
	}

	return pixels, nil
}

// ============================================================================
// ml.Backend Interface - Denoise
// ============================================================================

// Denoise laesst die UNet das Rauschen fuer den gegebenen Timestep
// vorhersagen.
func (b *Backend) Denoise(ctx context.Context, latent *ml.Tensor, timestep int, embedding *ml.Tensor) (*ml.Tensor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrAlreadyClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sample, err := ortTensor(latent)
	if err != nil {
		return nil, err
	}
	defer sample.Destroy()

	step, err := ort.NewTensor(ort.NewShape(1), []int64{int64(timestep)})
	if err != nil {
		return nil, fmt.Errorf("timestep tensor: %w", err)
	}
	defer step.Destroy()

	hidden, err := ortTensor(embedding)
	if err != nil {
		return nil, err
	}
	defer hidden.Destroy()

	pred, err := b.run(b.unet, sample, step, hidden)
	if err != nil {
		return nil, fmt.Errorf("unet: %w", err)
	}

	return pred, nil
}

// ============================================================================
// ml.Backend Interface - EmbedText
// ============================================================================

// EmbedText tokenisiert den Prompt und gibt die CLIP Text-Embeddings
// [1, 77, dim] zurueck.
func (b *Backend) EmbedText(ctx context.Context, text string) (*ml.Tensor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrAlreadyClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := b.tok.Encode(text)
	input, err := ort.NewTensor(ort.NewShape(1, int64(tokenizer.ContextLength)), ids)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer input.Destroy()

	embedding, err := b.run(b.textEncoder, input)
	if err != nil {
		return nil, fmt.Errorf("text encoder: %w", err)
	}

	return embedding, nil
}

// ============================================================================
// ml.Backend Interface - LatentShape & Close
// ============================================================================

// LatentShape gibt die Latent-Dimensionen fuer eine Render-Groesse zurueck.
func (b *Backend) LatentShape(renderSize int) []int {
	side := renderSize / latentDownsample
	return []int{1, latentChannels, side, side}
}

// Close gibt alle Sessions frei
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	for _, s := range []*Session{b.textEncoder, b.vaeEncoder, b.vaeDecoder, b.unet} {
		if s != nil {
			s.Destroy()
		}
	}
	b.textEncoder, b.vaeEncoder, b.vaeDecoder, b.unet = nil, nil, nil, nil

	b.closed = true
	return nil
}

// ============================================================================
// ml.Predictor Interface
// ============================================================================

// Predict fuehrt eine Session mit benannten Tensoren aus. Fehlende
// Inputs sind ein Fehler, die Outputs werden unter ihren ONNX-Namen
// zurueckgegeben.
func (s *Session) Predict(ctx context.Context, inputs map[string]*ml.Tensor) (map[string]*ml.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ordered := make([]ort.ArbitraryTensor, 0, len(s.inputNames))
	for _, name := range s.inputNames {
		t, ok := inputs[name]
		if !ok {
			destroyAll(ordered)
			return nil, fmt.Errorf("%w: input %q fehlt", ErrInvalidInput, name)
		}
		ot, err := ortTensor(t)
		if err != nil {
			destroyAll(ordered)
			return nil, err
		}
		ordered = append(ordered, ot)
	}
	defer destroyAll(ordered)

	outputs, err := s.Run(ordered)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer destroyAll(outputs)

	result := make(map[string]*ml.Tensor, len(outputs))
	for i, name := range s.outputNames {
		mt, err := mlTensor(outputs[i])
		if err != nil {
			return nil, err
		}
		result[name] = mt
	}

	return result, nil
}

// ============================================================================
// Tensor-Konvertierung
// ============================================================================

// run fuehrt eine Session aus und konvertiert den ersten Output
func (b *Backend) run(sess *Session, inputs ...ort.ArbitraryTensor) (*ml.Tensor, error) {
	outputs, err := sess.Run(inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer destroyAll(outputs)

	return mlTensor(outputs[0])
}

// ortTensor konvertiert einen ml.Tensor (float16) zu einem ONNX
// Runtime float32 Tensor
func ortTensor(t *ml.Tensor) (*ort.Tensor[float32], error) {
	shape := t.Shape()
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}

	ot, err := ort.NewTensor(ort.NewShape(dims...), t.Float32s())
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	return ot, nil
}

// mlTensor konvertiert einen ONNX Runtime Output zurueck zu ml.Tensor
func mlTensor(v ort.ArbitraryTensor) (*ml.Tensor, error) {
	ot, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: unerwarteter output-typ %T", ErrInference, v)
	}

	dims := ot.GetShape()
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}

	return ml.TensorFromFloat32(ot.GetData(), shape...)
}

// destroyAll gibt eine Tensor-Liste frei, nil-Eintraege sind erlaubt
func destroyAll(ts []ort.ArbitraryTensor) {
	for _, t := range ts {
		if t != nil {
			t.Destroy()
		}
	}
}
