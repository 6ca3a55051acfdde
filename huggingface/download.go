// download.go - Modell-Pull vom HuggingFace Hub in das Modell-Verzeichnis
// Unterstuetzt parallele Downloads, Fortsetzen nach Abbruch und
// Fortschritts-Callbacks pro Datei.
// Hauptfunktionen: Pull
package huggingface

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Download-Konstanten
const (
	DefaultChunkSize       = 1024 * 1024 // 1 MB
	MaxDownloadRetries     = 3
	DownloadRetryDelay     = 2 * time.Second
	ProgressUpdateInterval = 100 * time.Millisecond
	DefaultParallelism     = 4
)

// PullResult enthaelt das Ergebnis eines Modell-Pulls
type PullResult struct {
	Name      string
	ModelID   string
	Revision  string
	Dir       string
	Files     []PulledFile
	TotalSize int64
	Duration  time.Duration
}

// PulledFile repraesentiert eine geholte Datei
type PulledFile struct {
	Filename  string
	Path      string
	Size      int64
	FromCache bool
}

// PullProgressFunc wird waehrend des Pulls pro Datei aufgerufen
type PullProgressFunc func(file string, completed, total int64)

// PullOption konfiguriert einen Pull
type PullOption func(*pullConfig)

type pullConfig struct {
	revision    string
	progressFn  PullProgressFunc
	parallelism int
}

// WithPullRevision setzt die Git-Revision fuer den Pull
func WithPullRevision(revision string) PullOption {
	return func(cfg *pullConfig) { cfg.revision = revision }
}

// WithPullProgress setzt den Fortschritts-Callback
func WithPullProgress(fn PullProgressFunc) PullOption {
	return func(cfg *pullConfig) { cfg.progressFn = fn }
}

// WithPullParallelism setzt die Anzahl paralleler Downloads
func WithPullParallelism(n int) PullOption {
	return func(cfg *pullConfig) {
		if n > 0 {
			cfg.parallelism = n
		}
	}
}

// Pull laedt einen kompletten ONNX-Export nach modelsDir/<name>.
// Bereits vollstaendig vorhandene Dateien werden uebersprungen, angebrochene
// Downloads werden per Range-Request fortgesetzt.
func (c *Client) Pull(ctx context.Context, name, modelsDir string, opts ...PullOption) (*PullResult, error) {
	startTime := time.Now()

	km, err := Resolve(name)
	if err != nil {
		return nil, err
	}

	cfg := &pullConfig{revision: km.Revision, parallelism: DefaultParallelism}
	for _, opt := range opts {
		opt(cfg)
	}

	info, err := c.GetModelInfoWithContext(ctx, km.ModelID)
	if err != nil {
		return nil, fmt.Errorf("model-info fuer %s abrufen fehlgeschlagen: %w", km.ModelID, err)
	}
	if info.IsGated() && c.token == "" {
		return nil, fmt.Errorf("%w: repository %s ist gated, %s setzen", ErrUnauthorized, km.ModelID, EnvHFToken)
	}

	files, missing := exportSiblings(info.Siblings)
	if len(missing) > 0 {
		return nil, fmt.Errorf("repository %s ist kein vollstaendiger onnx-export (fehlt: %s)", km.ModelID, strings.Join(missing, ", "))
	}

	dir := filepath.Join(modelsDir, km.Name)

	var totalSize int64
	for _, f := range files {
		totalSize += f.FileSize()
	}

	// Callbacks kommen aus mehreren Download-Goroutinen und werden
	// fuer den Aufrufer serialisiert
	var progressMu sync.Mutex
	report := func(file string, completed, total int64) {
		if cfg.progressFn == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		cfg.progressFn(file, completed, total)
	}

	results := make([]PulledFile, 0, len(files))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup
	errChan := make(chan error, len(files))
	slots := make(chan struct{}, cfg.parallelism)

	for _, file := range files {
		wg.Add(1)
		go func(f APISibling) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()

			localPath := filepath.Join(dir, filepath.FromSlash(f.Filename))
			size := f.FileSize()
			fromCache := false
			if stat, err := os.Stat(localPath); err == nil && stat.Size() == size {
				fromCache = true
				report(f.Filename, size, size)
			} else {
				if err := c.downloadFile(ctx, km.ModelID, f.Filename, cfg.revision, localPath, size, report); err != nil {
					errChan <- fmt.Errorf("download von %s fehlgeschlagen: %w", f.Filename, err)
					return
				}
			}

			resultsMu.Lock()
			results = append(results, PulledFile{Filename: f.Filename, Path: localPath, Size: size, FromCache: fromCache})
			resultsMu.Unlock()
		}(file)
	}
	wg.Wait()
	close(errChan)

	var pullErrors []error
	for err := range errChan {
		pullErrors = append(pullErrors, err)
	}
	if len(pullErrors) > 0 {
		return nil, errors.Join(pullErrors...)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Filename < results[j].Filename })

	return &PullResult{
		Name:      km.Name,
		ModelID:   km.ModelID,
		Revision:  cfg.revision,
		Dir:       dir,
		Files:     results,
		TotalSize: totalSize,
		Duration:  time.Since(startTime),
	}, nil
}

// exportSiblings filtert die Repository-Dateien auf das Export-Layout
// und meldet fehlende Pflichtdateien
func exportSiblings(siblings []APISibling) (files []APISibling, missing []string) {
	byName := make(map[string]APISibling, len(siblings))
	for _, s := range siblings {
		byName[s.Filename] = s
	}
	for _, name := range ExportFiles {
		if s, ok := byName[name]; ok {
			files = append(files, s)
		} else {
			missing = append(missing, name)
		}
	}
	return files, missing
}

func (c *Client) downloadFile(ctx context.Context, modelID, filename, revision, targetPath string, totalSize int64, report PullProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("verzeichnis erstellen fehlgeschlagen: %w", err)
	}
	url := fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, modelID, revision, filename)
	var lastErr error
	for attempt := 0; attempt < MaxDownloadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(DownloadRetryDelay):
			}
		}
		if err := c.doDownload(ctx, url, targetPath, filename, totalSize, report); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("download nach %d versuchen fehlgeschlagen: %w", MaxDownloadRetries, lastErr)
}

func (c *Client) doDownload(ctx context.Context, url, targetPath, filename string, totalSize int64, report PullProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	var existingSize int64
	tmpPath := targetPath + ".download"
	if stat, err := os.Stat(tmpPath); err == nil {
		existingSize = stat.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && existingSize > 0 {
		// Server ignoriert den Range-Header, von vorne beginnen
		existingSize = 0
		os.Remove(tmpPath)
	} else if err := c.handleResponseError(resp); err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if existingSize > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(tmpPath, flags, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	completed := existingSize
	lastReport := time.Now()
	report(filename, completed, totalSize)

	buf := make([]byte, DefaultChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			completed += int64(n)
			if time.Since(lastReport) >= ProgressUpdateInterval {
				report(filename, completed, totalSize)
				lastReport = time.Now()
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	if err := file.Close(); err != nil {
		return err
	}
	report(filename, completed, totalSize)

	// erst nach vollstaendigem Download an den Zielpfad verschieben
	return os.Rename(tmpPath, targetPath)
}
