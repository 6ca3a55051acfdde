// MODUL: tensor
// ZWECK: Konvertierung zwischen Frames und Modell-Tensoren
// INPUT: Frame (RGBA) bzw. ml.Tensor [1, 3, H, W]
// OUTPUT: ml.Tensor normalisiert auf [-1, 1] bzw. Frame mit Clamping
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: ml (Tensor)
// HINWEISE: CHW Layout (Channel-First), Werte ausserhalb [-1, 1] werden
//           beim Rueckweg auf den gueltigen Bereich geklemmt

package vision

import (
	"fmt"
	"image"

	"github.com/pictaflux/flowpaint/ml"
)

// Standard-Normalisierungswerte
var (
	// ImageNet Standard (normalisiert auf [-1, 1]), Konvention der
	// Stable-Diffusion VAE
	ImageNetStandardMean = [3]float32{0.5, 0.5, 0.5}
	ImageNetStandardStd  = [3]float32{0.5, 0.5, 0.5}
)

// ToModelTensor bereitet einen Frame fuer das Modell vor:
// zentriertes Quadrat ausschneiden, auf size x size skalieren,
// als CHW Tensor [1, 3, size, size] im Bereich [-1, 1] zurueckgeben.
func ToModelTensor(f *Frame, size int) (*ml.Tensor, error) {
	scaled, err := Resize(CenterCropSquare(f), size, size)
	if err != nil {
		return nil, err
	}

	data := NormalizeRGB(scaled, ImageNetStandardMean, ImageNetStandardStd)
	return ml.TensorFromFloat32(data, 1, 3, size, size)
}

// FromModelTensor konvertiert einen Modell-Output [1, 3, H, W] im
// Bereich [-1, 1] zurueck zu einem Frame. Werte ausserhalb des
// Bereichs werden geklemmt.
func FromModelTensor(t *ml.Tensor) (*Frame, error) {
	shape := t.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return nil, fmt.Errorf("unerwartete tensor-shape %v, erwartet [1 3 H W]", shape)
	}

	h, w := shape[2], shape[3]
	size := h * w
	data := t.Float32s()

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			off := rgba.PixOffset(x, y)
			rgba.Pix[off+0] = denormByte(data[idx])
			rgba.Pix[off+1] = denormByte(data[size+idx])
			rgba.Pix[off+2] = denormByte(data[2*size+idx])
			rgba.Pix[off+3] = 255
		}
	}

	return FromImage(rgba), nil
}

// denormByte bringt einen Wert aus [-1, 1] nach [0, 255] mit Clamping
func denormByte(v float32) uint8 {
	scaled := v*0.5 + 0.5
	if scaled <= 0 {
		return 0
	}
	if scaled >= 1 {
		return 255
	}
	return uint8(scaled*255 + 0.5)
}

// NormalizeRGB normalisiert einen Frame mit gegebenen mean/std Werten.
// Gibt einen float32-Slice im CHW Format zurueck (Channel-First).
func NormalizeRGB(f *Frame, mean, std [3]float32) []float32 {
	h, w := f.Height, f.Width
	size := h * w
	result := make([]float32, size*3)

	for y := 0; y < h; y++ {
		off := f.Image.PixOffset(f.Image.Rect.Min.X, f.Image.Rect.Min.Y+y)
		row := f.Image.Pix[off:]
		for x := 0; x < w; x++ {
			idx := y*w + x
			px := row[x*4:]
			result[idx] = (float32(px[0])/255 - mean[0]) / std[0]
			result[size+idx] = (float32(px[1])/255 - mean[1]) / std[1]
			result[2*size+idx] = (float32(px[2])/255 - mean[2]) / std[2]
		}
	}

	return result
}
