// known_models.go - Registry der kuratierten Diffusions-Exporte
// Kurznamen wie "sdxs" zeigen auf fertige ONNX-Exporte auf dem Hub.
// Hauptfunktionen: Resolve, Suggest, Names
package huggingface

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrUnknownModel wird zurueckgegeben wenn ein Kurzname nicht registriert ist
var ErrUnknownModel = errors.New("unbekanntes modell")

// maxSuggestDistance begrenzt wie weit ein Tippfehler von einem
// Kurznamen entfernt sein darf
const maxSuggestDistance = 3

// ExportFiles sind die Dateien, aus denen ein lauffaehiger ONNX-Export
// besteht; das Layout entspricht dem optimum/diffusers Export
var ExportFiles = []string{
	"unet/model.onnx",
	"vae_encoder/model.onnx",
	"vae_decoder/model.onnx",
	"text_encoder/model.onnx",
	"tokenizer/vocab.json",
	"tokenizer/merges.txt",
}

// KnownModel beschreibt einen kuratierten ONNX-Export auf dem Hub
type KnownModel struct {
	Name        string // Kurzname fuer die CLI
	ModelID     string // Hub-Repository (owner/model)
	Revision    string
	RenderSize  int // native Aufloesung des Exports
	Steps       int // empfohlene Schrittzahl
	Description string
}

// KnownModels enthaelt alle kuratierten Exporte
var KnownModels = map[string]KnownModel{
	"sdxs": {
		Name:        "sdxs",
		ModelID:     "pictaflux/sdxs-512-onnx",
		Revision:    "main",
		RenderSize:  512,
		Steps:       1,
		Description: "SDXS-512 Ein-Schritt-Distillat, Standard fuer Live-Streams",
	},
	"sd-turbo": {
		Name:        "sd-turbo",
		ModelID:     "pictaflux/sd-turbo-onnx",
		Revision:    "main",
		RenderSize:  512,
		Steps:       1,
		Description: "SD-Turbo Adversarial-Distillat, 1-4 Schritte",
	},
	"tiny-sd": {
		Name:        "tiny-sd",
		ModelID:     "pictaflux/tiny-sd-onnx",
		Revision:    "main",
		RenderSize:  512,
		Steps:       4,
		Description: "Segmind Tiny-SD, kleines UNet fuer schwache GPUs",
	},
	"dreamshaper-lcm": {
		Name:        "dreamshaper-lcm",
		ModelID:     "pictaflux/dreamshaper-7-lcm-onnx",
		Revision:    "main",
		RenderSize:  512,
		Steps:       4,
		Description: "DreamShaper v7 LCM, stilisierte Ausgaben in 4 Schritten",
	},
}

// Resolve loest einen Kurznamen oder eine volle Repository-ID auf.
// Volle IDs (owner/model) gehen ohne Registry-Eintrag direkt an den Hub.
func Resolve(name string) (KnownModel, error) {
	if km, ok := KnownModels[name]; ok {
		return km, nil
	}

	if strings.Contains(name, "/") {
		if err := validateModelID(name); err != nil {
			return KnownModel{}, err
		}
		return KnownModel{
			Name:     name[strings.Index(name, "/")+1:],
			ModelID:  name,
			Revision: "main",
		}, nil
	}

	if s := Suggest(name); s != "" {
		return KnownModel{}, fmt.Errorf("%w: %q - meinten Sie %q?", ErrUnknownModel, name, s)
	}
	return KnownModel{}, fmt.Errorf("%w: %q (bekannt: %s)", ErrUnknownModel, name, strings.Join(Names(), ", "))
}

// Suggest liefert den aehnlichsten Kurznamen, leer wenn keiner nahe liegt
func Suggest(name string) string {
	var closest string
	best := maxSuggestDistance + 1
	for _, alias := range Names() {
		if score := levenshtein.ComputeDistance(name, alias); score < best {
			best = score
			closest = alias
		}
	}
	return closest
}

// Names gibt alle Kurznamen sortiert zurueck
func Names() []string {
	names := make([]string, 0, len(KnownModels))
	for name := range KnownModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
