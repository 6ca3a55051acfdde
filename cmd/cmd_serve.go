// cmd_serve.go - Serve Command und Versions-Anzeige
// Hauptfunktionen: RunServer, serveConfig, versionHandler, newServeCmd
package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pictaflux/flowpaint/api"
	"github.com/pictaflux/flowpaint/diffusion"
	"github.com/pictaflux/flowpaint/envconfig"
	"github.com/pictaflux/flowpaint/huggingface"
	"github.com/pictaflux/flowpaint/server"
	"github.com/pictaflux/flowpaint/version"
)

// RunServer - Startet den Flowpaint-Sidecar
func RunServer(cmd *cobra.Command, _ []string) error {
	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}

	// Vor dem Start pruefen, ob der Export vollstaendig vorliegt;
	// das Test-Backend braucht keine Modelldateien
	if cfg.Backend != "test" {
		if missing := huggingface.MissingFiles(cfg.ModelDir); len(missing) > 0 {
			model, _ := cmd.Flags().GetString("model")
			msg := fmt.Sprintf("modell %q unvollstaendig unter %s (fehlt: %s)", model, cfg.ModelDir, strings.Join(missing, ", "))
			if s := huggingface.Suggest(model); s != "" && s != model {
				return fmt.Errorf("%s - meinten Sie %q?", msg, s)
			}
			return fmt.Errorf("%s - mit 'flowpaint pull %s' herunterladen", msg, model)
		}
	}

	host := envconfig.Host().Host
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = net.JoinHostPort(h, strconv.Itoa(port))
		}
	}

	ln, err := net.Listen("tcp", host)
	if err != nil {
		return err
	}

	err = server.Serve(ln, cfg)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// serveConfig - Baut die Server-Konfiguration aus den Flags
func serveConfig(cmd *cobra.Command) (server.Config, error) {
	flags := cmd.Flags()

	dcfg := diffusion.DefaultConfig()
	dcfg.Prompt, _ = flags.GetString("prompt")
	dcfg.NegativePrompt, _ = flags.GetString("negative-prompt")
	dcfg.RenderSize, _ = flags.GetInt("render-size")
	dcfg.Strength, _ = flags.GetFloat64("strength")
	dcfg.Feedback, _ = flags.GetFloat64("feedback")
	dcfg.LerpSpeed, _ = flags.GetFloat64("lerp-speed")
	dcfg.GuidanceScale, _ = flags.GetFloat64("guidance-scale")
	dcfg.Steps, _ = flags.GetInt("steps")
	dcfg.Seed, _ = flags.GetInt64("seed")

	backend, _ := flags.GetString("backend")
	model, _ := flags.GetString("model")
	models, _ := flags.GetString("models")
	if models == "" {
		models = envconfig.Models()
	}

	outputSize, _ := flags.GetInt("output-size")

	return server.Config{
		Backend:    backend,
		ModelDir:   filepath.Join(models, model),
		OutputSize: outputSize,
		Diffusion:  dcfg,
	}, nil
}

// versionHandler - Zeigt die Version an
func versionHandler(cmd *cobra.Command, _ []string) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		cmd.Println("Warning: could not connect to a running flowpaint instance")
	}

	if serverVersion != "" {
		cmd.Printf("flowpaint version is %s\n", serverVersion)
	}

	if serverVersion != version.Version {
		cmd.Printf("Warning: client version is %s\n", version.Version)
	}
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the flowpaint sidecar",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}

	defaults := diffusion.DefaultConfig()
	flags := serveCmd.Flags()
	flags.Int("port", 0, "Override the port from FLOWPAINT_HOST")
	flags.String("backend", "onnx", "Inference backend (onnx, test)")
	flags.String("model", "sdxs", "Name of the exported model directory")
	flags.String("models", "", "Path to the models directory (default FLOWPAINT_MODELS)")
	flags.String("prompt", defaults.Prompt, "Initial style prompt")
	flags.String("negative-prompt", defaults.NegativePrompt, "Initial negative prompt")
	flags.Int("render-size", defaults.RenderSize, "Edge length frames are rendered at")
	flags.Int("output-size", 0, "Edge length of reply frames (default render size)")
	flags.Float64("strength", defaults.Strength, "Stylization strength (0-1)")
	flags.Float64("feedback", defaults.Feedback, "Temporal smoothing over the previous frame (0-1)")
	flags.Float64("lerp-speed", defaults.LerpSpeed, "Prompt crossfade speed per frame (0-1)")
	flags.Float64("guidance-scale", defaults.GuidanceScale, "Classifier-free guidance scale")
	flags.Int("steps", defaults.Steps, "Denoising steps per frame")
	flags.Int64("seed", defaults.Seed, "Seed for the fixed noise pattern")

	return serveCmd
}
