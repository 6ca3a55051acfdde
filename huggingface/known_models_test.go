// known_models_test.go - Unit Tests fuer die Modell-Registry
package huggingface

import (
	"errors"
	"strings"
	"testing"
)

// TestResolveKnownAliases testet die Aufloesung der Kurznamen
func TestResolveKnownAliases(t *testing.T) {
	tests := []struct {
		name            string
		expectedModelID string
	}{
		{"sdxs", "pictaflux/sdxs-512-onnx"},
		{"sd-turbo", "pictaflux/sd-turbo-onnx"},
		{"tiny-sd", "pictaflux/tiny-sd-onnx"},
		{"dreamshaper-lcm", "pictaflux/dreamshaper-7-lcm-onnx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := Resolve(tt.name)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.name, err)
			}
			if km.ModelID != tt.expectedModelID {
				t.Errorf("ModelID = %q, erwartet %q", km.ModelID, tt.expectedModelID)
			}
			if km.Name != tt.name {
				t.Errorf("Name = %q, erwartet %q", km.Name, tt.name)
			}
			if km.Revision == "" {
				t.Error("Revision darf nicht leer sein")
			}
		})
	}
}

// TestResolveFullModelID testet volle Repository-IDs ohne Registry-Eintrag
func TestResolveFullModelID(t *testing.T) {
	km, err := Resolve("someorg/custom-export-onnx")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if km.ModelID != "someorg/custom-export-onnx" {
		t.Errorf("ModelID = %q", km.ModelID)
	}
	if km.Name != "custom-export-onnx" {
		t.Errorf("Name = %q, erwartet %q", km.Name, "custom-export-onnx")
	}
	if km.Revision != "main" {
		t.Errorf("Revision = %q, erwartet main", km.Revision)
	}
}

// TestResolveInvalidModelID testet fehlerhafte Repository-IDs
func TestResolveInvalidModelID(t *testing.T) {
	for _, name := range []string{"a/b/c", "/model", "owner/"} {
		t.Run(name, func(t *testing.T) {
			if _, err := Resolve(name); !errors.Is(err, ErrInvalidModelID) {
				t.Errorf("Resolve(%q) = %v, erwartet ErrInvalidModelID", name, err)
			}
		})
	}
}

// TestResolveUnknownSuggests testet den Tippfehler-Vorschlag
func TestResolveUnknownSuggests(t *testing.T) {
	_, err := Resolve("sdxz")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("erwartet ErrUnknownModel, bekommen: %v", err)
	}
	if !strings.Contains(err.Error(), `"sdxs"`) {
		t.Errorf("Fehlermeldung ohne Vorschlag: %v", err)
	}
}

// TestResolveUnknownListsNames testet die Namensliste wenn kein Vorschlag passt
func TestResolveUnknownListsNames(t *testing.T) {
	_, err := Resolve("flux")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("erwartet ErrUnknownModel, bekommen: %v", err)
	}
	if !strings.Contains(err.Error(), "sdxs") || !strings.Contains(err.Error(), "tiny-sd") {
		t.Errorf("Fehlermeldung ohne Namensliste: %v", err)
	}
}

// TestSuggest testet die Levenshtein-Vorschlaege
func TestSuggest(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"sdxs", "sdxs"},
		{"sdxz", "sdxs"},
		{"sd-trubo", "sd-turbo"},
		{"turbo", "sd-turbo"},
		{"zzzzzzzz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Suggest(tt.input); got != tt.expected {
				t.Errorf("Suggest(%q) = %q, erwartet %q", tt.input, got, tt.expected)
			}
		})
	}
}
