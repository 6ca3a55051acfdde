// cmd_test.go - Tests fuer Flag-Verarbeitung und den Serve-Preflight
package cmd

import (
	"strings"
	"testing"
)

func TestServeConfigDefaults(t *testing.T) {
	serveCmd := newServeCmd()
	if err := serveCmd.Flags().Set("models", "/tmp/modelle"); err != nil {
		t.Fatal(err)
	}

	cfg, err := serveConfig(serveCmd)
	if err != nil {
		t.Fatalf("serveConfig() error = %v", err)
	}

	if cfg.Backend != "onnx" {
		t.Errorf("Backend = %q, erwartet onnx", cfg.Backend)
	}
	if !strings.HasSuffix(cfg.ModelDir, "sdxs") {
		t.Errorf("ModelDir = %q, erwartet .../sdxs", cfg.ModelDir)
	}
	if cfg.Diffusion.RenderSize != 512 {
		t.Errorf("RenderSize = %d, erwartet 512", cfg.Diffusion.RenderSize)
	}
	if cfg.Diffusion.Strength != 0.4 {
		t.Errorf("Strength = %v, erwartet 0.4", cfg.Diffusion.Strength)
	}
}

func TestServeConfigFlags(t *testing.T) {
	serveCmd := newServeCmd()
	for flag, value := range map[string]string{
		"backend":     "test",
		"model":       "sd-turbo",
		"models":      "/tmp/modelle",
		"strength":    "0.7",
		"steps":       "4",
		"output-size": "768",
	} {
		if err := serveCmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("Set(%s) error = %v", flag, err)
		}
	}

	cfg, err := serveConfig(serveCmd)
	if err != nil {
		t.Fatalf("serveConfig() error = %v", err)
	}

	if cfg.Backend != "test" {
		t.Errorf("Backend = %q, erwartet test", cfg.Backend)
	}
	if !strings.HasSuffix(cfg.ModelDir, "sd-turbo") {
		t.Errorf("ModelDir = %q, erwartet .../sd-turbo", cfg.ModelDir)
	}
	if cfg.Diffusion.Strength != 0.7 {
		t.Errorf("Strength = %v, erwartet 0.7", cfg.Diffusion.Strength)
	}
	if cfg.Diffusion.Steps != 4 {
		t.Errorf("Steps = %d, erwartet 4", cfg.Diffusion.Steps)
	}
	if cfg.OutputSize != 768 {
		t.Errorf("OutputSize = %d, erwartet 768", cfg.OutputSize)
	}
}

func TestRunServerPreflightMissingModel(t *testing.T) {
	serveCmd := newServeCmd()
	if err := serveCmd.Flags().Set("models", t.TempDir()); err != nil {
		t.Fatal(err)
	}

	err := RunServer(serveCmd, nil)
	if err == nil {
		t.Fatal("RunServer() ohne Modelldateien gab keinen Fehler")
	}
	if !strings.Contains(err.Error(), "flowpaint pull sdxs") {
		t.Errorf("error = %q, erwartet Hinweis auf 'flowpaint pull sdxs'", err)
	}
}

func TestRunServerPreflightSuggestsName(t *testing.T) {
	serveCmd := newServeCmd()
	if err := serveCmd.Flags().Set("models", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := serveCmd.Flags().Set("model", "sdxz"); err != nil {
		t.Fatal(err)
	}

	err := RunServer(serveCmd, nil)
	if err == nil {
		t.Fatal("RunServer() mit Tippfehler gab keinen Fehler")
	}
	if !strings.Contains(err.Error(), `meinten Sie "sdxs"`) {
		t.Errorf("error = %q, erwartet Namensvorschlag sdxs", err)
	}
}
