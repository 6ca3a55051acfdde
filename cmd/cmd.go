// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/pictaflux/flowpaint/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "flowpaint",
		Short:         "Live diffusion video stylizer",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	serveCmd := newServeCmd()
	pullCmd := newPullCmd()
	listCmd := newListCmd()
	deleteCmd := newDeleteCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	appendEnvDocs(serveCmd, []envconfig.EnvVar{
		envVars["FLOWPAINT_DEBUG"],
		envVars["FLOWPAINT_HOST"],
		envVars["FLOWPAINT_LOAD_TIMEOUT"],
		envVars["FLOWPAINT_MODELS"],
		envVars["FLOWPAINT_ORIGINS"],
	})
	for _, cmd := range []*cobra.Command{pullCmd, listCmd, deleteCmd} {
		appendEnvDocs(cmd, []envconfig.EnvVar{envVars["FLOWPAINT_MODELS"]})
	}

	rootCmd.AddCommand(
		serveCmd,
		pullCmd,
		listCmd,
		deleteCmd,
	)

	return rootCmd
}
