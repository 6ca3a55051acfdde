//go:build !onnx || !cgo

// MODUL: onnx/stub
// ZWECK: Stub-Implementierung wenn CGO oder das onnx Build-Tag fehlt
// HINWEISE: Gibt Fehler zurueck bei allen Operationen, registriert sich
//           trotzdem als "onnx" damit die Fehlermeldung aussagekraeftig ist

package onnx

import (
	"context"
	"errors"

	"github.com/pictaflux/flowpaint/ml"
)

// ErrCGORequired wird zurueckgegeben wenn das Backend ohne CGO und
// das 'onnx' Build-Tag angefordert wird
var ErrCGORequired = errors.New("onnx: CGO und build-tag 'onnx' erforderlich")

func init() {
	ml.RegisterBackend("onnx", New)
}

// Backend Stub
type Backend struct{}

// New Stub - gibt immer Fehler zurueck
func New(modelDir string, opts ml.LoadOptions) (ml.Backend, error) {
	return nil, ErrCGORequired
}

// EncodeImage Stub
func (b *Backend) EncodeImage(ctx context.Context, pixels *ml.Tensor) (*ml.Tensor, error) {
	return nil, ErrCGORequired
}

// DecodeImage Stub
func (b *Backend) DecodeImage(ctx context.Context, latent *ml.Tensor) (*ml.Tensor, error) {
	return nil, ErrCGORequired
}

// Denoise Stub
func (b *Backend) Denoise(ctx context.Context, latent *ml.Tensor, timestep int, embedding *ml.Tensor) (*ml.Tensor, error) {
	return nil, ErrCGORequired
}

// EmbedText Stub
func (b *Backend) EmbedText(ctx context.Context, text string) (*ml.Tensor, error) {
	return nil, ErrCGORequired
}

// LatentShape Stub
func (b *Backend) LatentShape(renderSize int) []int {
	return nil
}

// Close Stub
func (b *Backend) Close() error {
	return nil
}
