// MODUL: frame
// ZWECK: Dekodieren, Zuschneiden und Kodieren von Video-Frames
// INPUT: Frame-Bytes (JPEG/PNG/WebP) aus dem Stream
// OUTPUT: Frame Struktur mit RGBA-Bild, JPEG-Bytes fuer die Antwort
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern), image/jpeg, image/png
// HINWEISE: Alle Frames werden als RGBA konvertiert, WebP benoetigt x/image/webp

package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Standard-Decoder registrieren
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultJPEGQuality ist die Qualitaet fuer kodierte Ausgabe-Frames
const DefaultJPEGQuality = 90

// Frame enthaelt einen dekodierten Video-Frame mit Metadaten
type Frame struct {
	Image  *image.RGBA
	Width  int
	Height int
	Format ImageFormat
}

// DecodeFrame dekodiert einen Frame aus Byte-Daten
func DecodeFrame(data []byte) (*Frame, error) {
	format := DetectFormat(data)
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("frame dekodieren fehlgeschlagen: %w", err)
	}

	rgba := toRGBA(img)
	bounds := rgba.Bounds()

	return &Frame{
		Image:  rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}

// FromImage packt ein fertiges RGBA-Bild in einen Frame
func FromImage(rgba *image.RGBA) *Frame {
	bounds := rgba.Bounds()
	return &Frame{
		Image:  rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: FormatUnknown,
	}
}

// EncodeJPEG kodiert einen Frame als JPEG mit der gegebenen Qualitaet
func EncodeJPEG(f *Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg kodieren fehlgeschlagen: %w", err)
	}
	return buf.Bytes(), nil
}

// toRGBA konvertiert ein beliebiges image.Image zu *image.RGBA
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// Resize skaliert einen Frame auf die angegebene Groesse
func Resize(f *Frame, width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ungueltige Groesse: %dx%d", width, height)
	}

	// Bereits passend? Dann keine Kopie
	if f.Width == width && f.Height == height {
		return f, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), f.Image, f.Image.Bounds(), draw.Over, nil)

	return &Frame{
		Image:  dst,
		Width:  width,
		Height: height,
		Format: f.Format,
	}, nil
}

// CenterCropSquare schneidet das groesste zentrierte Quadrat aus.
// Kamera-Frames sind typischerweise 16:9, das Modell erwartet 1:1.
func CenterCropSquare(f *Frame) *Frame {
	side := f.Width
	if f.Height < side {
		side = f.Height
	}
	if f.Width == f.Height {
		return f
	}

	offsetX := (f.Width - side) / 2
	offsetY := (f.Height - side) / 2

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	srcRect := image.Rect(offsetX, offsetY, offsetX+side, offsetY+side)
	draw.Draw(dst, dst.Bounds(), f.Image, srcRect.Min, draw.Src)

	return &Frame{
		Image:  dst,
		Width:  side,
		Height: side,
		Format: f.Format,
	}
}
