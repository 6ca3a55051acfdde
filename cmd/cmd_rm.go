// cmd_rm.go - Remove Command fuer installierte Modelle
// Hauptfunktionen: DeleteHandler, newDeleteCmd
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pictaflux/flowpaint/envconfig"
	"github.com/pictaflux/flowpaint/huggingface"
)

// DeleteHandler - Loescht ein oder mehrere Modelle
func DeleteHandler(cmd *cobra.Command, args []string) error {
	modelsDir, err := cmd.Flags().GetString("models")
	if err != nil {
		return err
	}
	if modelsDir == "" {
		modelsDir = envconfig.Models()
	}

	for _, arg := range args {
		if err := huggingface.Remove(modelsDir, arg); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		fmt.Printf("deleted '%s'\n", arg)
	}
	return nil
}

// newDeleteCmd - Erstellt den rm Command
func newDeleteCmd() *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "rm MODEL [MODEL...]",
		Short: "Remove a model",
		Args:  cobra.MinimumNArgs(1),
		RunE:  DeleteHandler,
	}

	deleteCmd.Flags().String("models", "", "Models directory (default FLOWPAINT_MODELS)")

	return deleteCmd
}
