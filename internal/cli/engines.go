package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// enginesCmd represents the engines command
var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List available engines",
	Long:  `List the names of all registered engines, one per line, in lexicographic order.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		registry, err := newRegistry(cfg.DefaultEngine)
		if err != nil {
			return err
		}

		for _, name := range registry.Available() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nDefault engine: %s\n", registry.Default())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}
