// backend.go - Backend-Interface und Registrierung fuer Inferenz-Backends
// Dieses Modul definiert die Faehigkeiten, die der Frame-Prozessor vom
// Backend verlangt, sowie die Backend-Factory-Funktionen.
package ml

import (
	"context"
	"fmt"
)

// Backend buendelt die vier Netz-Faehigkeiten der Pipeline.
// Tensoren werden als [Batch, Kanal, Hoehe, Breite] bzw.
// [Batch, Sequenz, Dim] uebergeben.
type Backend interface {
	// EncodeImage bildet Pixel [1,3,H,W] in [-1,1] auf ein Latent ab
	EncodeImage(ctx context.Context, pixels *Tensor) (*Tensor, error)

	// DecodeImage bildet ein Latent zurueck auf Pixel [1,3,H,W] in [-1,1]
	DecodeImage(ctx context.Context, latent *Tensor) (*Tensor, error)

	// Denoise sagt das Rauschen im Latent fuer einen Timestep voraus,
	// konditioniert auf ein Prompt-Embedding
	Denoise(ctx context.Context, latent *Tensor, timestep int, embedding *Tensor) (*Tensor, error)

	// EmbedText bildet einen Prompt auf ein Embedding fester Shape ab
	EmbedText(ctx context.Context, text string) (*Tensor, error)

	// LatentShape gibt die Latent-Shape fuer eine Render-Groesse zurueck
	LatentShape(renderSize int) []int

	// Close gibt alle Backend-Ressourcen frei
	Close() error
}

// Predictor ist die rohe predict-Faehigkeit: benannte Eingabe-Tensoren
// auf benannte Ausgabe-Tensoren. Konkrete Backends bauen die vier
// Backend-Methoden darauf auf.
type Predictor interface {
	Predict(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
}

// LoadOptions konfiguriert das Laden eines Backends
type LoadOptions struct {
	// Device waehlt das Geraet ("cpu", "cuda")
	Device string

	// Threads fuer Intra-Op Parallelisierung (0 = auto)
	Threads int

	// MainGPU ist der GPU-Index (Standard: 0)
	MainGPU int
}

// DefaultLoadOptions gibt Standard-Optionen zurueck
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Device:  "cpu",
		Threads: 0,
		MainGPU: 0,
	}
}

// Option modifiziert LoadOptions
type Option func(*LoadOptions)

// WithDevice setzt das Geraet
func WithDevice(device string) Option {
	return func(o *LoadOptions) {
		o.Device = device
	}
}

// WithThreads setzt die Thread-Anzahl
func WithThreads(n int) Option {
	return func(o *LoadOptions) {
		o.Threads = n
	}
}

// WithMainGPU setzt den GPU-Index
func WithMainGPU(idx int) Option {
	return func(o *LoadOptions) {
		o.MainGPU = idx
	}
}

var backends = make(map[string]func(string, LoadOptions) (Backend, error))

// RegisterBackend registriert eine Backend-Factory unter einem Namen
func RegisterBackend(name string, f func(string, LoadOptions) (Backend, error)) {
	if _, ok := backends[name]; ok {
		panic("ml: backend bereits registriert: " + name)
	}

	backends[name] = f
}

// NewBackend erstellt ein Backend ueber die registrierte Factory
func NewBackend(name, modelDir string, opts ...Option) (Backend, error) {
	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("ml: unbekanntes backend %q", name)
	}

	o := DefaultLoadOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return f(modelDir, o)
}
