// MODUL: frame_test
// ZWECK: Tests fuer Frame-Dekodierung, Zuschneiden und JPEG-Kodierung
// INPUT: Synthetische Bilder und PNG/JPEG-Bytes
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, image, image/png, bytes
// HINWEISE: Testet den kompletten Frame-Rundweg des Streams

package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// createPNGBytes erzeugt PNG-Bytes aus einem einfarbigen Testbild
func createPNGBytes(w, h int, c color.Color) []byte {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, rgba)
	return buf.Bytes()
}

// createJPEGBytes erzeugt JPEG-Bytes aus einem einfarbigen Testbild
func createJPEGBytes(w, h int, c color.Color) []byte {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, rgba, nil)
	return buf.Bytes()
}

func TestDecodeFrame(t *testing.T) {
	pngData := createPNGBytes(100, 50, color.RGBA{255, 0, 0, 255})

	frame, err := DecodeFrame(pngData)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}

	if frame.Width != 100 || frame.Height != 50 {
		t.Errorf("Groesse = %dx%d, erwartet 100x50", frame.Width, frame.Height)
	}

	if frame.Format != FormatPNG {
		t.Errorf("Format = %v, erwartet %v", frame.Format, FormatPNG)
	}
}

func TestDecodeFrameJPEG(t *testing.T) {
	jpegData := createJPEGBytes(64, 64, color.White)

	frame, err := DecodeFrame(jpegData)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}

	if frame.Format != FormatJPEG {
		t.Errorf("Format = %v, erwartet %v", frame.Format, FormatJPEG)
	}
}

func TestDecodeFrameInvalid(t *testing.T) {
	invalidData := []byte{0x00, 0x00, 0x00, 0x00}

	_, err := DecodeFrame(invalidData)
	if err == nil {
		t.Error("Erwartet Fehler bei ungueltigem Format")
	}
}

func TestEncodeJPEG(t *testing.T) {
	pngData := createPNGBytes(48, 48, color.RGBA{0, 128, 255, 255})
	frame, _ := DecodeFrame(pngData)

	jpegData, err := EncodeJPEG(frame, DefaultJPEGQuality)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}

	if DetectFormat(jpegData) != FormatJPEG {
		t.Error("EncodeJPEG() Ausgabe ist kein JPEG")
	}

	// Rundweg: Ausgabe muss wieder dekodierbar sein
	decoded, err := DecodeFrame(jpegData)
	if err != nil {
		t.Fatalf("DecodeFrame(EncodeJPEG()) error = %v", err)
	}
	if decoded.Width != 48 || decoded.Height != 48 {
		t.Errorf("Groesse = %dx%d, erwartet 48x48", decoded.Width, decoded.Height)
	}
}

func TestResize(t *testing.T) {
	pngData := createPNGBytes(100, 100, color.White)
	frame, _ := DecodeFrame(pngData)

	resized, err := Resize(frame, 50, 50)
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}

	if resized.Width != 50 || resized.Height != 50 {
		t.Errorf("Groesse = %dx%d, erwartet 50x50", resized.Width, resized.Height)
	}
}

func TestResizeSameSize(t *testing.T) {
	pngData := createPNGBytes(64, 64, color.White)
	frame, _ := DecodeFrame(pngData)

	resized, err := Resize(frame, 64, 64)
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}

	// Gleiche Groesse: kein neues Bild
	if resized != frame {
		t.Error("Resize() auf gleiche Groesse sollte den Frame unveraendert zurueckgeben")
	}
}

func TestResizeInvalidSize(t *testing.T) {
	pngData := createPNGBytes(100, 100, color.White)
	frame, _ := DecodeFrame(pngData)

	if _, err := Resize(frame, 0, 50); err == nil {
		t.Error("Erwartet Fehler bei Breite 0")
	}

	if _, err := Resize(frame, 50, -1); err == nil {
		t.Error("Erwartet Fehler bei negativer Hoehe")
	}
}

func TestCenterCropSquare(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		expected int
	}{
		{"landscape 16:9", 160, 90, 90},
		{"portrait", 50, 80, 50},
		{"bereits quadratisch", 64, 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pngData := createPNGBytes(tt.w, tt.h, color.White)
			frame, _ := DecodeFrame(pngData)

			cropped := CenterCropSquare(frame)
			if cropped.Width != tt.expected || cropped.Height != tt.expected {
				t.Errorf("Groesse = %dx%d, erwartet %dx%d",
					cropped.Width, cropped.Height, tt.expected, tt.expected)
			}
		})
	}
}
