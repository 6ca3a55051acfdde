// models.go - Verwaltung des lokalen Modell-Verzeichnisses
// Ein Modell liegt unter <models>/<name>/ im Export-Layout.
// Hauptfunktionen: ListInstalled, IsInstalled, MissingFiles, Remove
package huggingface

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrModelNotInstalled wird beim Zugriff auf ein fehlendes Modell zurueckgegeben
var ErrModelNotInstalled = errors.New("modell nicht installiert")

// InstalledModel beschreibt ein Modell unterhalb des Modell-Verzeichnisses
type InstalledModel struct {
	Name       string
	Dir        string
	Size       int64
	FileCount  int
	ModifiedAt time.Time
	Complete   bool
}

// ListInstalled listet alle Modelle unter modelsDir auf, sortiert nach Name.
// Ein fehlendes Verzeichnis ergibt eine leere Liste, keinen Fehler.
func ListInstalled(modelsDir string) ([]InstalledModel, error) {
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []InstalledModel{}, nil
		}
		return nil, err
	}

	models := make([]InstalledModel, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(modelsDir, entry.Name())
		m := InstalledModel{
			Name:     entry.Name(),
			Dir:      dir,
			Complete: len(MissingFiles(dir)) == 0,
		}
		m.Size, m.FileCount = dirSizeAndCount(dir)
		if info, err := entry.Info(); err == nil {
			m.ModifiedAt = info.ModTime()
		}
		models = append(models, m)
	}

	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// IsInstalled prueft ob ein Modell vollstaendig unter modelsDir liegt
func IsInstalled(modelsDir, name string) bool {
	return len(MissingFiles(filepath.Join(modelsDir, name))) == 0
}

// MissingFiles gibt die fehlenden Export-Dateien eines Modell-Verzeichnisses
// zurueck; leer bedeutet vollstaendig
func MissingFiles(dir string) []string {
	var missing []string
	for _, name := range ExportFiles {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Remove loescht ein Modell aus dem Modell-Verzeichnis
func Remove(modelsDir, name string) error {
	dir := filepath.Join(modelsDir, name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrModelNotInstalled
	}
	return os.RemoveAll(dir)
}

func dirSizeAndCount(path string) (int64, int) {
	var size int64
	var count int
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
			count++
		}
		return nil
	})
	return size, count
}
