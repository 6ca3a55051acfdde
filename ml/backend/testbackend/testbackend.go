// testbackend.go - Deterministisches In-Memory Backend fuer Tests
//
// Enthaelt:
// - Backend: ml.Backend mit Identitaets-Encode/Decode (Latent == Pixel)
// - Hooks: DenoiseFn/EmbedFn fuer testspezifisches Verhalten
// - Fehler-Injektion ueber EncodeErr/DecodeErr/DenoiseErr/EmbedErr
// - Aufruf-Zaehler und Mitschnitt der Timesteps/Prompts
//
// Der Latent-Raum ist hier identisch mit dem Pixel-Raum [1, 3, H, W],
// damit Tests Ergebnisse elementweise nachrechnen koennen.
package testbackend

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/pictaflux/flowpaint/ml"
)

// EmbedDim ist die Embedding-Breite des Test-Backends
const EmbedDim = 8

// Backend implementiert ml.Backend ohne echte Modelle
type Backend struct {
	// DenoiseFn ueberschreibt die Rausch-Vorhersage. Standard: Null-Tensor
	DenoiseFn func(latent *ml.Tensor, timestep int, embedding *ml.Tensor) *ml.Tensor

	// EmbedFn ueberschreibt das Text-Embedding. Standard: deterministisch
	// aus dem Text-Hash
	EmbedFn func(text string) *ml.Tensor

	// Fehler-Injektion: wenn gesetzt, schlaegt die Operation fehl
	EncodeErr  error
	DecodeErr  error
	DenoiseErr error
	EmbedErr   error

	mu           sync.Mutex
	encodeCalls  int
	decodeCalls  int
	denoiseCalls int
	embedCalls   int
	timesteps    []int
	prompts      []string
	closed       bool
}

func init() {
	// "test" laesst den Sidecar ohne Modelldateien laufen, z.B. fuer
	// die Controller-Entwicklung
	ml.RegisterBackend("test", func(string, ml.LoadOptions) (ml.Backend, error) {
		return New(), nil
	})
}

// New erstellt ein frisches Test-Backend
func New() *Backend {
	return &Backend{}
}

// EncodeImage ist die Identitaet: Latents == Pixel
func (b *Backend) EncodeImage(ctx context.Context, pixels *ml.Tensor) (*ml.Tensor, error) {
	b.mu.Lock()
	b.encodeCalls++
	b.mu.Unlock()

	if b.EncodeErr != nil {
		return nil, b.EncodeErr
	}
	return pixels.Clone(), nil
}

// DecodeImage ist die Identitaet: Pixel == Latents
func (b *Backend) DecodeImage(ctx context.Context, latent *ml.Tensor) (*ml.Tensor, error) {
	b.mu.Lock()
	b.decodeCalls++
	b.mu.Unlock()

	if b.DecodeErr != nil {
		return nil, b.DecodeErr
	}
	return latent.Clone(), nil
}

// Denoise gibt die Vorhersage von DenoiseFn zurueck, standardmaessig
// einen Null-Tensor in Latent-Form
func (b *Backend) Denoise(ctx context.Context, latent *ml.Tensor, timestep int, embedding *ml.Tensor) (*ml.Tensor, error) {
	b.mu.Lock()
	b.denoiseCalls++
	b.timesteps = append(b.timesteps, timestep)
	b.mu.Unlock()

	if b.DenoiseErr != nil {
		return nil, b.DenoiseErr
	}
	if b.DenoiseFn != nil {
		return b.DenoiseFn(latent, timestep, embedding), nil
	}
	return ml.NewTensor(latent.Shape()...), nil
}

// EmbedText liefert ein deterministisches Embedding pro Text
func (b *Backend) EmbedText(ctx context.Context, text string) (*ml.Tensor, error) {
	b.mu.Lock()
	b.embedCalls++
	b.prompts = append(b.prompts, text)
	b.mu.Unlock()

	if b.EmbedErr != nil {
		return nil, b.EmbedErr
	}
	if b.EmbedFn != nil {
		return b.EmbedFn(text), nil
	}

	// Gleicher Text ergibt bitweise das gleiche Embedding
	h := fnv.New64a()
	h.Write([]byte(text))
	return ml.RandomNormal(int64(h.Sum64()), 1, 77, EmbedDim), nil
}

// LatentShape entspricht der Pixel-Shape, der Test-Latent-Raum hat
// keinen Downsampling-Faktor
func (b *Backend) LatentShape(renderSize int) []int {
	return []int{1, 3, renderSize, renderSize}
}

// Close markiert das Backend als geschlossen
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed gibt zurueck ob Close() aufgerufen wurde
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// EncodeCalls gibt die Anzahl der EncodeImage-Aufrufe zurueck
func (b *Backend) EncodeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.encodeCalls
}

// DecodeCalls gibt die Anzahl der DecodeImage-Aufrufe zurueck
func (b *Backend) DecodeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decodeCalls
}

// DenoiseCalls gibt die Anzahl der Denoise-Aufrufe zurueck
func (b *Backend) DenoiseCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.denoiseCalls
}

// EmbedCalls gibt die Anzahl der EmbedText-Aufrufe zurueck
func (b *Backend) EmbedCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.embedCalls
}

// Timesteps gibt die Timesteps aller Denoise-Aufrufe in Reihenfolge zurueck
func (b *Backend) Timesteps() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, len(b.timesteps))
	copy(out, b.timesteps)
	return out
}

// Prompts gibt alle an EmbedText uebergebenen Texte in Reihenfolge zurueck
func (b *Backend) Prompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.prompts))
	copy(out, b.prompts)
	return out
}

// ResetCounters setzt Zaehler und Mitschnitte zurueck
func (b *Backend) ResetCounters() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.encodeCalls, b.decodeCalls, b.denoiseCalls, b.embedCalls = 0, 0, 0, 0
	b.timesteps = nil
	b.prompts = nil
}
