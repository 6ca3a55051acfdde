// models_test.go - Unit Tests fuer das lokale Modell-Verzeichnis
package huggingface

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeExport legt ein Modell-Verzeichnis mit den angegebenen Dateien an
func writeExport(t *testing.T, dir string, files []string) {
	t.Helper()
	for _, name := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// TestListInstalledEmpty testet ein fehlendes Modell-Verzeichnis
func TestListInstalledEmpty(t *testing.T) {
	models, err := ListInstalled(filepath.Join(t.TempDir(), "gibt-es-nicht"))
	if err != nil {
		t.Fatalf("ListInstalled: %v", err)
	}
	if len(models) != 0 {
		t.Errorf("erwartet leere Liste, bekommen %d Eintraege", len(models))
	}
}

// TestListInstalled testet Auflistung, Groessen und Vollstaendigkeit
func TestListInstalled(t *testing.T) {
	modelsDir := t.TempDir()
	writeExport(t, filepath.Join(modelsDir, "sdxs"), ExportFiles)
	writeExport(t, filepath.Join(modelsDir, "kaputt"), ExportFiles[:2])

	models, err := ListInstalled(modelsDir)
	if err != nil {
		t.Fatalf("ListInstalled: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("erwartet 2 Modelle, bekommen %d", len(models))
	}

	// sortiert nach Name: kaputt vor sdxs
	if models[0].Name != "kaputt" || models[1].Name != "sdxs" {
		t.Fatalf("unerwartete Reihenfolge: %s, %s", models[0].Name, models[1].Name)
	}
	if models[0].Complete {
		t.Error("unvollstaendiges Modell als vollstaendig gemeldet")
	}
	if !models[1].Complete {
		t.Error("vollstaendiges Modell als unvollstaendig gemeldet")
	}
	if models[1].FileCount != len(ExportFiles) {
		t.Errorf("FileCount = %d, erwartet %d", models[1].FileCount, len(ExportFiles))
	}
	if models[1].Size == 0 {
		t.Error("Size darf nicht 0 sein")
	}
}

// TestIsInstalledAndMissing testet die Vollstaendigkeits-Pruefung
func TestIsInstalledAndMissing(t *testing.T) {
	modelsDir := t.TempDir()
	writeExport(t, filepath.Join(modelsDir, "sdxs"), ExportFiles)
	writeExport(t, filepath.Join(modelsDir, "halb"), ExportFiles[1:])

	if !IsInstalled(modelsDir, "sdxs") {
		t.Error("sdxs sollte installiert sein")
	}
	if IsInstalled(modelsDir, "halb") {
		t.Error("halb ist unvollstaendig")
	}
	if IsInstalled(modelsDir, "fehlt") {
		t.Error("fehlt existiert nicht")
	}

	missing := MissingFiles(filepath.Join(modelsDir, "halb"))
	if len(missing) != 1 || missing[0] != ExportFiles[0] {
		t.Errorf("MissingFiles = %v, erwartet [%s]", missing, ExportFiles[0])
	}
}

// TestRemove testet das Loeschen eines Modells
func TestRemove(t *testing.T) {
	modelsDir := t.TempDir()
	writeExport(t, filepath.Join(modelsDir, "sdxs"), ExportFiles)

	if err := Remove(modelsDir, "sdxs"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(modelsDir, "sdxs")); !os.IsNotExist(err) {
		t.Error("Verzeichnis existiert noch")
	}
	if err := Remove(modelsDir, "sdxs"); !errors.Is(err, ErrModelNotInstalled) {
		t.Errorf("zweites Remove = %v, erwartet ErrModelNotInstalled", err)
	}
}
