// cmd_list.go - List Command fuer installierte Modelle
// Hauptfunktionen: ListHandler, newListCmd
package cmd

import (
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pictaflux/flowpaint/envconfig"
	"github.com/pictaflux/flowpaint/format"
	"github.com/pictaflux/flowpaint/huggingface"
)

// ListHandler - Listet alle installierten Modelle auf
func ListHandler(cmd *cobra.Command, args []string) error {
	modelsDir, err := cmd.Flags().GetString("models")
	if err != nil {
		return err
	}
	if modelsDir == "" {
		modelsDir = envconfig.Models()
	}

	models, err := huggingface.ListInstalled(modelsDir)
	if err != nil {
		return err
	}

	var data [][]string

	for _, m := range models {
		if len(args) == 0 || strings.HasPrefix(strings.ToLower(m.Name), strings.ToLower(args[0])) {
			status := "ready"
			if !m.Complete {
				status = "incomplete"
			}

			data = append(data, []string{m.Name, format.HumanBytes(m.Size), status, format.HumanTime(m.ModifiedAt, "Never")})
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"NAME", "SIZE", "STATUS", "MODIFIED"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

// newListCmd - Erstellt den list Command
func newListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed models",
		Args:    cobra.MaximumNArgs(1),
		RunE:    ListHandler,
	}

	listCmd.Flags().String("models", "", "Models directory (default FLOWPAINT_MODELS)")

	return listCmd
}
