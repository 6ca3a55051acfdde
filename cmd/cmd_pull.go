// cmd_pull.go - Pull Command fuer ONNX-Exporte vom HuggingFace Hub
// Hauptfunktionen: PullHandler, newPullCmd
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pictaflux/flowpaint/envconfig"
	"github.com/pictaflux/flowpaint/format"
	"github.com/pictaflux/flowpaint/huggingface"
	"github.com/pictaflux/flowpaint/progress"
)

// PullHandler - Laedt einen ONNX-Export in das Modell-Verzeichnis herunter
func PullHandler(cmd *cobra.Command, args []string) error {
	modelsDir, err := cmd.Flags().GetString("models")
	if err != nil {
		return err
	}
	if modelsDir == "" {
		modelsDir = envconfig.Models()
	}

	p := progress.NewProgress(os.Stderr)
	defer p.Stop()

	bars := make(map[string]*progress.Bar)

	fn := func(file string, completed, total int64) {
		bar, ok := bars[file]
		if !ok {
			bar = progress.NewBar(fmt.Sprintf("pulling %s:", file), total, completed)
			bars[file] = bar
			p.Add(file, bar)
		}

		bar.Set(completed)
	}

	opts := []huggingface.PullOption{huggingface.WithPullProgress(fn)}
	if revision, _ := cmd.Flags().GetString("revision"); revision != "" {
		opts = append(opts, huggingface.WithPullRevision(revision))
	}

	client := huggingface.NewClient()
	res, err := client.Pull(cmd.Context(), args[0], modelsDir, opts...)
	if err != nil {
		return err
	}

	p.Stop()
	fmt.Printf("pulled '%s' (%s)\n", res.Name, format.HumanBytes(res.TotalSize))
	return nil
}

// newPullCmd - Erstellt den pull Command
func newPullCmd() *cobra.Command {
	pullCmd := &cobra.Command{
		Use:   "pull MODEL",
		Short: "Pull a model from the HuggingFace Hub",
		Args:  cobra.ExactArgs(1),
		RunE:  PullHandler,
	}

	pullCmd.Flags().String("models", "", "Target models directory (default FLOWPAINT_MODELS)")
	pullCmd.Flags().String("revision", "", "Git revision to pull")

	return pullCmd
}
